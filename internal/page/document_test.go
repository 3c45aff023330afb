package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const sampleForm = `<html><body>
<form id="login">
  <input id="user" type="text" name="username" value="alice">
  <input id="pass" type="password" name="password">
  <input id="remember" type="checkbox" name="remember" checked>
  <input id="plan-a" type="radio" name="plan" checked>
  <input id="plan-b" type="radio" name="plan">
  <textarea id="bio">hello</textarea>
  <button id="go" type="submit">Sign in</button>
</form>
</body></html>`

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := ParseString(src)
	require.NoError(t, err)
	return doc
}

func byID(t *testing.T, doc *Document, id string) *html.Node {
	t.Helper()
	var found *html.Node
	doc.ForEachElement(func(n *html.Node) bool {
		if v, ok := Attr(n, "id"); ok && v == id {
			found = n
			return false
		}
		return true
	})
	require.NotNil(t, found, "no element with id %q", id)
	return found
}

func TestDocumentSeedsInputState(t *testing.T) {
	doc := mustParse(t, sampleForm)

	assert.Equal(t, "alice", doc.Value(byID(t, doc, "user")))
	assert.Equal(t, "hello", doc.Value(byID(t, doc, "bio")))
	assert.True(t, doc.Checked(byID(t, doc, "remember")))
	assert.False(t, doc.Checked(byID(t, doc, "plan-b")))
}

func TestDocumentAttachedAndRemove(t *testing.T) {
	doc := mustParse(t, sampleForm)
	user := byID(t, doc, "user")

	require.True(t, doc.Attached(user))
	require.NoError(t, doc.RemoveNode(user))
	assert.False(t, doc.Attached(user))

	// Removing an already-detached node is an error, not a panic.
	assert.Error(t, doc.RemoveNode(user))

	// Input state for the removed node is gone.
	assert.Equal(t, "", doc.Value(user))
}

func TestRemoveNodeClearsFocus(t *testing.T) {
	doc := mustParse(t, sampleForm)
	user := byID(t, doc, "user")

	doc.SetFocus(user)
	require.Equal(t, user, doc.Focused())
	require.NoError(t, doc.RemoveNode(user))
	assert.Nil(t, doc.Focused())
}

func TestRadioGroupExclusivity(t *testing.T) {
	doc := mustParse(t, sampleForm)
	a := byID(t, doc, "plan-a")
	b := byID(t, doc, "plan-b")

	require.True(t, doc.Checked(a))
	doc.SetChecked(b, true)
	assert.True(t, doc.Checked(b))
	assert.False(t, doc.Checked(a), "checking one radio must clear its group")
}

func TestObserveDeliversMutations(t *testing.T) {
	doc := mustParse(t, sampleForm)
	ch, cancel := doc.Observe(16)
	defer cancel()

	doc.SetAttribute(byID(t, doc, "go"), "disabled", "")

	var got []Mutation
	for len(ch) > 0 {
		got = append(got, <-ch)
	}
	require.NotEmpty(t, got)

	found := false
	for _, m := range got {
		if m.Kind == AttributeChanged && m.Attribute == "disabled" {
			found = true
		}
	}
	assert.True(t, found, "expected an AttributeChanged record for disabled")
}

func TestObserveRemovalAndAppend(t *testing.T) {
	doc := mustParse(t, sampleForm)
	ch, cancel := doc.Observe(64)
	defer cancel()

	form := byID(t, doc, "login")
	extra := &html.Node{
		Type: html.ElementNode,
		Data: "button",
		Attr: []html.Attribute{{Key: "id", Val: "extra"}},
	}
	require.NoError(t, doc.AppendChild(form, extra))
	require.NoError(t, doc.RemoveNode(extra))

	var kinds []MutationKind
	for len(ch) > 0 {
		m := <-ch
		if m.Kind == NodeAdded || m.Kind == NodeRemoved {
			kinds = append(kinds, m.Kind)
		}
	}
	assert.Equal(t, []MutationKind{NodeAdded, NodeRemoved}, kinds)
}

func TestObserveFullChannelDropsInsteadOfBlocking(t *testing.T) {
	doc := mustParse(t, sampleForm)
	_, cancel := doc.Observe(1)
	defer cancel()

	btn := byID(t, doc, "go")
	// Two mutations into a 1-slot channel nobody drains: the second must drop.
	doc.SetAttribute(btn, "a", "1")
	doc.SetAttribute(btn, "b", "2")

	assert.Greater(t, doc.DroppedMutations(), 0)
}

func TestSetValueNotifiesObservers(t *testing.T) {
	doc := mustParse(t, sampleForm)
	ch, cancel := doc.Observe(16)
	defer cancel()

	user := byID(t, doc, "user")
	doc.SetValue(user, "bob")
	assert.Equal(t, "bob", doc.Value(user))

	m := <-ch
	assert.Equal(t, AttributeChanged, m.Kind)
	assert.Equal(t, "value", m.Attribute)
	assert.Equal(t, user, m.Node)
}

func TestEnclosingForm(t *testing.T) {
	doc := mustParse(t, sampleForm)

	form := doc.EnclosingForm(byID(t, doc, "go"))
	require.NotNil(t, form)
	id, _ := Attr(form, "id")
	assert.Equal(t, "login", id)

	body := byID(t, doc, "login").Parent
	assert.Nil(t, doc.EnclosingForm(body))
}
