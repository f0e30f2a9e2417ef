package template

import (
	"strings"

	"checkin-desk/internal/models"
)

// Format replaces every {{name}} in tpl with the value of the row field
// called name. When several columns share a name the last one wins.
// Placeholders without a matching field are left as they are and values are
// inserted verbatim.
func Format(tpl string, row models.Row) string {
	values := row.Map()
	s := tpl
	for _, f := range row.Fields {
		v, ok := values[f.Name]
		if f.Name == "" || !ok {
			continue
		}
		s = strings.ReplaceAll(s, "{{"+f.Name+"}}", v)
		delete(values, f.Name)
	}
	return s
}
