package ampache

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/amphora-app/amphora/sharedutil"
)

// tagSeparator joins the values of repeated <tag> elements within one record.
const tagSeparator = ","

// record is one repeated element from a listing response, with its id
// attribute and the text of each captured sub-element. A sub-element
// carrying an id attribute of its own contributes an extra "<name>_id" field.
type record struct {
	id     string
	fields map[string]string
}

func (r record) get(name string) string {
	return r.fields[name]
}

// tags splits the accumulated <tag> values back into a list, dropping
// any empty elements the server sent.
func (r record) tags() []string {
	joined := r.fields["tag"]
	if joined == "" {
		return nil
	}
	tags := sharedutil.FilterMapSlice(strings.Split(joined, tagSeparator), func(s string) (string, bool) {
		s = strings.TrimSpace(s)
		return s, s != ""
	})
	if len(tags) == 0 {
		return nil
	}
	return tags
}

// decodeFlat captures the text content of each wanted top-level tag in a
// single-record response. A wanted tag present in the document appears in
// the result map even when its text is empty, so callers can distinguish
// "present and empty" from "absent".
func decodeFlat(r io.Reader, wanted ...string) (map[string]string, error) {
	want := sharedutil.ToSet(wanted)
	dec := xml.NewDecoder(r)
	fields := make(map[string]string)
	cur := ""
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if _, ok := want[name]; ok {
				cur = name
				if _, seen := fields[name]; !seen {
					fields[name] = ""
				}
			} else if cur != "" && name != cur {
				// unwanted nested element interrupts text capture
				cur = ""
			}
		case xml.CharData:
			if cur != "" {
				fields[cur] += string(t)
			}
		case xml.EndElement:
			if t.Name.Local == cur {
				cur = ""
			}
		}
	}
	return fields, nil
}

// decodeRecords streams a listing response, starting a new record at each
// element named recordTag and capturing the wanted sub-elements of each.
// Repeated <tag> sub-elements accumulate into one separator-joined value;
// any other repeated sub-element keeps only its last value. A top-level
// <error> element aborts the decode and is returned as a ServerError.
func decodeRecords(r io.Reader, recordTag string, wanted ...string) ([]record, error) {
	want := sharedutil.ToSet(wanted)
	dec := xml.NewDecoder(r)

	var recs []record
	cur := ""
	inError := false
	errCode := ""
	errText := ""

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			switch {
			case name == recordTag:
				recs = append(recs, record{
					id:     attrValue(t, "id"),
					fields: make(map[string]string),
				})
				cur = ""
			case name == "error":
				inError = true
				if errCode = attrValue(t, "errorCode"); errCode == "" {
					errCode = attrValue(t, "code")
				}
			case inError:
				// nested errorMessage etc: keep capturing text
			case len(recs) > 0:
				if _, ok := want[name]; ok {
					rec := &recs[len(recs)-1]
					cur = name
					if id := attrValue(t, "id"); id != "" {
						rec.fields[name+"_id"] = id
					}
					if name == "tag" {
						if rec.fields["tag"] != "" {
							rec.fields["tag"] += tagSeparator
						}
					} else {
						rec.fields[name] = ""
					}
				} else {
					cur = ""
				}
			}
		case xml.CharData:
			if inError {
				errText += string(t)
			} else if cur != "" && len(recs) > 0 {
				recs[len(recs)-1].fields[cur] += string(t)
			}
		case xml.EndElement:
			name := t.Name.Local
			if name == "error" {
				return nil, &ServerError{Code: errCode, Message: strings.TrimSpace(errText)}
			}
			if name == cur {
				cur = ""
			}
		}
	}
	return recs, nil
}

func attrValue(e xml.StartElement, name string) string {
	for _, a := range e.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
