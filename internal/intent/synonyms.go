// File: internal/intent/synonyms.go
package intent

import "github.com/xkilldash9x/pagesense/api/schemas"

// synonymClusters bridges the vocabulary gap between how users describe UI and
// how page authors name it. Every token in a cluster expands to the whole
// cluster; the table is fixed, not learned.
var synonymClusters = [][]string{
	{"first", "firstname", "fname", "given", "forename"},
	{"last", "lastname", "lname", "surname", "family"},
	{"name", "fullname", "username", "user"},
	{"email", "mail", "e-mail", "address"},
	{"phone", "tel", "telephone", "mobile", "cell"},
	{"password", "pass", "pwd", "secret"},
	{"submit", "send", "save", "confirm", "apply", "go", "ok", "done"},
	{"login", "signin", "log", "sign", "auth", "authenticate"},
	{"signup", "register", "join", "create"},
	{"search", "find", "query", "lookup", "filter"},
	{"cancel", "close", "dismiss", "abort", "back"},
	{"delete", "remove", "trash", "clear"},
	{"edit", "modify", "update", "change"},
	{"next", "continue", "forward", "proceed"},
	{"previous", "prev", "back"},
	{"menu", "nav", "navigation", "hamburger"},
	{"contact", "support", "help"},
	{"checkout", "cart", "basket", "buy", "purchase", "order"},
	{"accept", "agree", "consent", "allow"},
	{"message", "comment", "note", "text", "body"},
	{"upload", "attach", "file", "browse"},
	{"download", "export", "get"},
	{"settings", "preferences", "options", "config"},
	{"profile", "account", "avatar"},
	{"logout", "signout", "exit"},
	{"subscribe", "newsletter", "follow"},
}

// synonymTable is the token → cluster lookup built from synonymClusters.
var synonymTable = func() map[string][]string {
	table := make(map[string][]string)
	for _, cluster := range synonymClusters {
		for _, word := range cluster {
			table[word] = cluster
		}
	}
	return table
}()

// verbRoles biases resolution toward the roles a verb usually targets: "click"
// favors clickables, "type" favors text entry, and so on.
var verbRoles = map[string][]schemas.Role{
	"click":  {schemas.RoleButton, schemas.RoleLink, schemas.RoleCheckbox, schemas.RoleRadio, schemas.RoleTab, schemas.RoleMenuItem},
	"press":  {schemas.RoleButton, schemas.RoleLink},
	"tap":    {schemas.RoleButton, schemas.RoleLink},
	"push":   {schemas.RoleButton},
	"type":   {schemas.RoleInput, schemas.RoleTextarea},
	"enter":  {schemas.RoleInput, schemas.RoleTextarea},
	"fill":   {schemas.RoleInput, schemas.RoleTextarea},
	"write":  {schemas.RoleInput, schemas.RoleTextarea},
	"select": {schemas.RoleSelect, schemas.RoleOption},
	"choose": {schemas.RoleSelect, schemas.RoleOption, schemas.RoleRadio},
	"pick":   {schemas.RoleSelect, schemas.RoleOption},
	"check":  {schemas.RoleCheckbox},
	"toggle": {schemas.RoleCheckbox},
	"open":   {schemas.RoleLink, schemas.RoleButton, schemas.RoleMenuItem},
	"drag":   {schemas.RoleSlider},
	"slide":  {schemas.RoleSlider},
	"focus":  {schemas.RoleInput, schemas.RoleTextarea},
	"hover":  {schemas.RoleButton, schemas.RoleLink, schemas.RoleMenuItem},
}

// fillerTokens never help ranking; they are stripped before expansion. Note
// the action verbs are NOT fillers: they carry the role bias.
var fillerTokens = map[string]bool{
	"the": true, "a": true, "an": true, "on": true, "in": true, "at": true,
	"to": true, "of": true, "for": true, "with": true, "my": true, "me": true,
	"please": true, "then": true, "and": true, "field": true, "box": true,
	"element": true, "item": true,
}
