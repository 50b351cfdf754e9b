package sunshine

import (
	"encoding/xml"
	"strconv"
)

// rootResponse mirrors the host's <root status_code="200">...</root>
// envelope. Children are captured generically since the tag set differs per
// operation; callers pick specific children out by name.
type rootResponse struct {
	XMLName    xml.Name       `xml:"root"`
	StatusCode int            `xml:"status_code,attr"`
	StatusMsg  string         `xml:"status_message,attr"`
	Children   []rootChild    `xml:",any"`
}

type rootChild struct {
	XMLName xml.Name
	Content string `xml:",chardata"`
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   []byte     `xml:",innerxml"`
}

func parseRoot(body []byte) (*rootResponse, error) {
	var r rootResponse
	if err := xml.Unmarshal(body, &r); err != nil {
		return nil, newParse("parse XML response", err)
	}
	return &r, nil
}

// checkStatus returns HostRejected if the response's status_code isn't 200.
func (r *rootResponse) checkStatus() error {
	if r.StatusCode != 200 {
		return newHostRejected(r.StatusCode, r.StatusMsg)
	}
	return nil
}

// child returns the chardata of the first child with the given tag name, or
// "" if absent.
func (r *rootResponse) child(name string) (string, bool) {
	for _, c := range r.Children {
		if c.XMLName.Local == name {
			return c.Content, true
		}
	}
	return "", false
}

func (r *rootResponse) childInt(name string) (int, bool) {
	s, ok := r.child(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func (r *rootResponse) childAttr(name, attr string) (string, bool) {
	for _, c := range r.Children {
		if c.XMLName.Local == name {
			for _, a := range c.Attrs {
				if a.Name.Local == attr {
					return a.Value, true
				}
			}
		}
	}
	return "", false
}

// childrenAll returns all children sharing the given tag name, in order —
// used for applist's repeated <App> elements.
func (r *rootResponse) childrenAll(name string) []rootChild {
	var out []rootChild
	for _, c := range r.Children {
		if c.XMLName.Local == name {
			out = append(out, c)
		}
	}
	return out
}
