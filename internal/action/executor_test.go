package action

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagesense/api/schemas"
	"github.com/xkilldash9x/pagesense/internal/config"
	"github.com/xkilldash9x/pagesense/internal/page"
)

func testActionConfig() config.ActionConfig {
	return config.ActionConfig{
		Timeout:        time.Second,
		ReadyPoll:      5 * time.Millisecond,
		SettleDelay:    0,
		KeyDelay:       0,
		ClickHold:      0,
		VerifySnapshot: true,
	}
}

func setup(t *testing.T, src string) (*Executor, *page.Document) {
	t.Helper()
	doc, err := page.ParseString(src)
	require.NoError(t, err)
	return New(testActionConfig(), doc, zap.NewNop()), doc
}

func byID(t *testing.T, doc *page.Document, id string) *html.Node {
	t.Helper()
	var found *html.Node
	doc.ForEachElement(func(n *html.Node) bool {
		if v, ok := page.Attr(n, "id"); ok && v == id {
			found = n
			return false
		}
		return true
	})
	require.NotNil(t, found, "no element with id %q", id)
	return found
}

func TestClickFiresEventTrain(t *testing.T) {
	ex, doc := setup(t, `<html><body><button id="b">Go</button></body></html>`)
	btn := byID(t, doc, "b")

	var seen []page.EventType
	for _, typ := range []page.EventType{
		page.EventPointerDown, page.EventMouseDown, page.EventFocus,
		page.EventPointerUp, page.EventMouseUp, page.EventClick,
	} {
		typ := typ
		doc.AddEventListener(btn, typ, func(page.Event) { seen = append(seen, typ) })
	}

	res := ex.Execute(context.Background(), schemas.ActionClick, btn, "id1", schemas.ActionOptions{})
	require.True(t, res.Success, "click failed: %v", res.Error)
	assert.Equal(t, []page.EventType{
		page.EventPointerDown, page.EventMouseDown, page.EventFocus,
		page.EventPointerUp, page.EventMouseUp, page.EventClick,
	}, seen)
	assert.Equal(t, btn, doc.Focused())
}

func TestClickTogglesCheckbox(t *testing.T) {
	ex, doc := setup(t, `<html><body><input id="c" type="checkbox"></body></html>`)
	box := byID(t, doc, "c")

	res := ex.Execute(context.Background(), schemas.ActionClick, box, "id1", schemas.ActionOptions{})
	require.True(t, res.Success)
	assert.True(t, doc.Checked(box))
	require.NotNil(t, res.Snapshot)
	assert.True(t, res.Snapshot.Checked)

	res = ex.Execute(context.Background(), schemas.ActionClick, box, "id1", schemas.ActionOptions{})
	require.True(t, res.Success)
	assert.False(t, doc.Checked(box))
}

func TestClickSubmitButtonFiresFormSubmit(t *testing.T) {
	ex, doc := setup(t, `<html><body><form id="f"><button id="b" type="submit">Go</button></form></body></html>`)
	form := byID(t, doc, "f")
	btn := byID(t, doc, "b")

	submitted := false
	doc.AddEventListener(form, page.EventSubmit, func(page.Event) { submitted = true })

	res := ex.Execute(context.Background(), schemas.ActionClick, btn, "id1", schemas.ActionOptions{})
	require.True(t, res.Success)
	assert.True(t, submitted)
}

func TestTypeReplacesExistingValue(t *testing.T) {
	ex, doc := setup(t, `<html><body><input id="i" type="text" value="hi"></body></html>`)
	in := byID(t, doc, "i")
	require.Equal(t, "hi", doc.Value(in))

	res := ex.Execute(context.Background(), schemas.ActionType, in, "id1", schemas.ActionOptions{Text: "hi"})
	require.True(t, res.Success, "type failed: %v", res.Error)
	assert.Equal(t, "hi", doc.Value(in), "typing must clear first, not concatenate")
}

func TestTypeAppendKeepsExistingValue(t *testing.T) {
	ex, doc := setup(t, `<html><body><input id="i" type="text" value="hello ">`)
	in := byID(t, doc, "i")

	res := ex.Execute(context.Background(), schemas.ActionType, in, "id1", schemas.ActionOptions{Text: "world", Append: true})
	require.True(t, res.Success)
	assert.Equal(t, "hello world", doc.Value(in))
}

func TestTypeFiresPerCharacterEventsAndFinalChange(t *testing.T) {
	ex, doc := setup(t, `<html><body><input id="i" type="text"></body></html>`)
	in := byID(t, doc, "i")

	var keys []string
	inputs, changes := 0, 0
	doc.AddEventListener(in, page.EventKeyDown, func(ev page.Event) { keys = append(keys, ev.Key) })
	doc.AddEventListener(in, page.EventInput, func(page.Event) { inputs++ })
	doc.AddEventListener(in, page.EventChange, func(page.Event) { changes++ })

	res := ex.Execute(context.Background(), schemas.ActionType, in, "id1", schemas.ActionOptions{Text: "abc"})
	require.True(t, res.Success)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
	assert.Equal(t, 3, inputs)
	assert.Equal(t, 1, changes, "exactly one change event at the end")
	assert.Equal(t, "abc", doc.Value(in))
	require.NotNil(t, res.Snapshot)
	assert.Equal(t, "abc", res.Snapshot.Value)
}

func TestTypeRejectsNonTextTargets(t *testing.T) {
	ex, doc := setup(t, `<html><body><button id="b">Go</button><input id="r" type="text" readonly></body></html>`)

	res := ex.Execute(context.Background(), schemas.ActionType, byID(t, doc, "b"), "id1", schemas.ActionOptions{Text: "x"})
	require.False(t, res.Success)
	assert.Equal(t, schemas.ErrNodeNotInteractable, res.Error.Kind)
}

func TestDetachedNodeFailsTyped(t *testing.T) {
	ex, doc := setup(t, `<html><body><button id="b">Go</button></body></html>`)
	btn := byID(t, doc, "b")
	require.NoError(t, doc.RemoveNode(btn))

	res := ex.Execute(context.Background(), schemas.ActionClick, btn, "id1", schemas.ActionOptions{})
	require.False(t, res.Success)
	assert.Equal(t, schemas.ErrNodeDetached, res.Error.Kind)
	assert.NotEmpty(t, res.Timing, "even failures report phase timing")
}

func TestUnknownVerbFailsTyped(t *testing.T) {
	ex, doc := setup(t, `<html><body><button id="b">Go</button></body></html>`)

	res := ex.Execute(context.Background(), schemas.ActionVerb("teleport"), byID(t, doc, "b"), "id1", schemas.ActionOptions{})
	require.False(t, res.Success)
	assert.Equal(t, schemas.ErrUnsupportedAction, res.Error.Kind)
}

func TestNeverReadyNodeTimesOut(t *testing.T) {
	ex, doc := setup(t, `<html><body><button id="b" hidden>Go</button></body></html>`)

	res := ex.Execute(context.Background(), schemas.ActionClick, byID(t, doc, "b"), "id1",
		schemas.ActionOptions{TimeoutMs: 50})
	require.False(t, res.Success)
	assert.Equal(t, schemas.ErrActionTimeout, res.Error.Kind)
}

func TestDisabledNodeBecomesReady(t *testing.T) {
	ex, doc := setup(t, `<html><body><button id="b" disabled>Go</button></body></html>`)
	btn := byID(t, doc, "b")

	go func() {
		time.Sleep(20 * time.Millisecond)
		doc.RemoveAttribute(btn, "disabled")
	}()
	res := ex.Execute(context.Background(), schemas.ActionClick, btn, "id1", schemas.ActionOptions{})
	assert.True(t, res.Success, "readiness polling must pick up the enabled state: %v", res.Error)
}

func TestScrollAction(t *testing.T) {
	ex, doc := setup(t, `<html><body><button id="b">Go</button></body></html>`)

	res := ex.Execute(context.Background(), schemas.ActionScroll, byID(t, doc, "b"), "id1",
		schemas.ActionOptions{ScrollY: 42})
	require.True(t, res.Success)
	_, y := doc.ScrollOffset()
	assert.Equal(t, 42.0, y)
}

func TestFocusAndBlur(t *testing.T) {
	ex, doc := setup(t, `<html><body><input id="a" type="text"><input id="b" type="text"></body></html>`)
	a, b := byID(t, doc, "a"), byID(t, doc, "b")

	blurred := false
	doc.AddEventListener(a, page.EventBlur, func(page.Event) { blurred = true })

	require.True(t, ex.Execute(context.Background(), schemas.ActionFocus, a, "id1", schemas.ActionOptions{}).Success)
	assert.Equal(t, a, doc.Focused())

	require.True(t, ex.Execute(context.Background(), schemas.ActionFocus, b, "id2", schemas.ActionOptions{}).Success)
	assert.Equal(t, b, doc.Focused())
	assert.True(t, blurred, "moving focus blurs the previous holder")

	require.True(t, ex.Execute(context.Background(), schemas.ActionBlur, b, "id2", schemas.ActionOptions{}).Success)
	assert.Nil(t, doc.Focused())
}

func TestSelectOption(t *testing.T) {
	ex, doc := setup(t, `<html><body>
		<select id="s">
			<option value="us">United States</option>
			<option value="de">Germany</option>
			<option value="xx" disabled>Hidden Empire</option>
		</select>
	</body></html>`)
	sel := byID(t, doc, "s")

	changes := 0
	doc.AddEventListener(sel, page.EventChange, func(page.Event) { changes++ })

	// By value.
	res := ex.Execute(context.Background(), schemas.ActionSelect, sel, "id1", schemas.ActionOptions{Text: "de"})
	require.True(t, res.Success, "select failed: %v", res.Error)
	assert.Equal(t, "de", doc.Value(sel))

	// By visible text.
	res = ex.Execute(context.Background(), schemas.ActionSelect, sel, "id1", schemas.ActionOptions{Text: "United States"})
	require.True(t, res.Success)
	assert.Equal(t, "us", doc.Value(sel))
	assert.Equal(t, 2, changes)

	// Disabled options are not selectable.
	res = ex.Execute(context.Background(), schemas.ActionSelect, sel, "id1", schemas.ActionOptions{Text: "Hidden Empire"})
	require.False(t, res.Success)
	assert.Equal(t, schemas.ErrNodeNotFound, res.Error.Kind)
}

func TestToggleRadioOnlyTurnsOn(t *testing.T) {
	ex, doc := setup(t, `<html><body>
		<input id="r1" type="radio" name="g" checked>
		<input id="r2" type="radio" name="g">
	</body></html>`)
	r1, r2 := byID(t, doc, "r1"), byID(t, doc, "r2")

	res := ex.Execute(context.Background(), schemas.ActionToggle, r2, "id2", schemas.ActionOptions{})
	require.True(t, res.Success)
	assert.True(t, doc.Checked(r2))
	assert.False(t, doc.Checked(r1), "radio group exclusivity")

	// Toggling a checked radio keeps it on.
	res = ex.Execute(context.Background(), schemas.ActionToggle, r2, "id2", schemas.ActionOptions{})
	require.True(t, res.Success)
	assert.True(t, doc.Checked(r2))
}

func TestSubmitFromField(t *testing.T) {
	ex, doc := setup(t, `<html><body><form id="f"><input id="i" type="text"></form></body></html>`)
	form := byID(t, doc, "f")

	submitted := false
	doc.AddEventListener(form, page.EventSubmit, func(page.Event) { submitted = true })

	res := ex.Execute(context.Background(), schemas.ActionSubmit, byID(t, doc, "i"), "id1", schemas.ActionOptions{})
	require.True(t, res.Success)
	assert.True(t, submitted)
}

func TestHoverFiresEnterLeavePairs(t *testing.T) {
	ex, doc := setup(t, `<html><body><button id="a">A</button><button id="b">B</button></body></html>`)
	a, b := byID(t, doc, "a"), byID(t, doc, "b")

	var events []string
	doc.AddEventListener(a, page.EventMouseEnter, func(page.Event) { events = append(events, "enter-a") })
	doc.AddEventListener(a, page.EventMouseLeave, func(page.Event) { events = append(events, "leave-a") })
	doc.AddEventListener(b, page.EventMouseEnter, func(page.Event) { events = append(events, "enter-b") })

	require.True(t, ex.Execute(context.Background(), schemas.ActionHover, a, "id1", schemas.ActionOptions{}).Success)
	require.True(t, ex.Execute(context.Background(), schemas.ActionHover, b, "id2", schemas.ActionOptions{}).Success)

	assert.Equal(t, []string{"enter-a", "leave-a", "enter-b"}, events)
}

func TestPhaseTimingIsRecorded(t *testing.T) {
	ex, doc := setup(t, `<html><body><button id="b">Go</button></body></html>`)

	res := ex.Execute(context.Background(), schemas.ActionClick, byID(t, doc, "b"), "id1", schemas.ActionOptions{})
	require.True(t, res.Success)

	var phases []string
	for _, pt := range res.Timing {
		phases = append(phases, pt.Phase)
	}
	assert.Equal(t, []string{"validate", "await_ready", "bring_into_view", "execute", "verify"}, phases)
	assert.Greater(t, res.Total, time.Duration(0))
}
