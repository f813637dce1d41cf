package dom

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

var encodingDeclPattern = regexp.MustCompile(`encoding=["']([A-Za-z0-9._-]+)["']`)

// Parse parses an XML document and returns its document node. Documents in
// encodings other than UTF-8 are transcoded first, based on the encoding
// pseudo-attribute of the XML declaration and the IANA registry.
func Parse(data []byte) (*Node, error) {
	data, err := toUTF8(data)
	if err != nil {
		return nil, err
	}
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return doc, nil
}

// ParseString parses an XML document held in a string.
func ParseString(s string) (*Node, error) {
	return Parse([]byte(s))
}

// ParseReader parses an XML document from r.
func ParseReader(r io.Reader) (*Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	return Parse(data)
}

// ParseFile parses the XML document stored at path.
func ParseFile(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// toUTF8 transcodes data to UTF-8 when the XML declaration names another
// encoding. The declaration is rewritten so the parser sees a consistent
// document.
func toUTF8(data []byte) ([]byte, error) {
	head := data
	if len(head) > 200 {
		head = head[:200]
	}
	match := encodingDeclPattern.FindSubmatch(head)
	if match == nil {
		return data, nil
	}
	name := string(match[1])
	switch strings.ToLower(name) {
	case "utf-8", "utf8", "us-ascii", "ascii":
		return data, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported document encoding %q", name)
	}
	decoded, err := decode(enc, data)
	if err != nil {
		return nil, fmt.Errorf("transcoding from %s: %w", name, err)
	}
	return encodingDeclPattern.ReplaceAll(decoded, []byte(`encoding="UTF-8"`)), nil
}

func decode(enc encoding.Encoding, data []byte) ([]byte, error) {
	out, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(data)))
	if err != nil {
		return nil, err
	}
	return out, nil
}
