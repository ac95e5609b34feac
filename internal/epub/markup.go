package epub

import (
	"regexp"
	"strings"
)

// voidElements never take content, so their self-closing form is already
// what an HTML parser expects.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

var reSelfClosing = regexp.MustCompile(`<([A-Za-z][A-Za-z0-9:_.-]*)((?:\s+[^<>]*?)?)\s*/>`)

// ExpandSelfClosing rewrites XHTML self-closing tags of non-void elements,
// such as <title/> or <a id="x"/>, into explicit open and close pairs. The
// HTML5 parser ignores the trailing slash on those, which would let an
// empty element swallow the rest of the document.
func ExpandSelfClosing(markup string) string {
	if !strings.Contains(markup, "/>") {
		return markup
	}
	return reSelfClosing.ReplaceAllStringFunc(markup, func(tag string) string {
		m := reSelfClosing.FindStringSubmatch(tag)
		name := m[1]
		if voidElements[strings.ToLower(name)] {
			return tag
		}
		return "<" + name + m[2] + "></" + name + ">"
	})
}
