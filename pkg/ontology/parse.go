package ontology

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ParseFile reads an ontology source into a term table: lowercased names and
// synonyms mapped to their canonical term id.
func ParseFile(path, format string) (map[string]string, error) {
	switch strings.ToLower(format) {
	case "obo":
		return parseOBO(path)
	case "json":
		return parseJSON(path)
	default:
		return nil, fmt.Errorf("ontology: unsupported source format %q", format)
	}
}

// parseOBO handles the line-oriented OBO stanza format: [Term] blocks with
// id, name, and synonym lines. Obsolete terms are skipped.
func parseOBO(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	terms := make(map[string]string)
	var (
		inTerm   bool
		id       string
		names    []string
		obsolete bool
	)
	flush := func() {
		if inTerm && id != "" && !obsolete {
			for _, n := range names {
				if n != "" {
					terms[n] = id
				}
			}
		}
		id, names, obsolete = "", nil, false
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "["):
			flush()
			inTerm = line == "[Term]"
		case !inTerm:
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "name:"):
			names = append(names, Normalize(strings.TrimPrefix(line, "name:")))
		case strings.HasPrefix(line, "synonym:"):
			if s := oboQuoted(strings.TrimPrefix(line, "synonym:")); s != "" {
				names = append(names, Normalize(s))
			}
		case strings.HasPrefix(line, "is_obsolete:"):
			obsolete = strings.Contains(line, "true")
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return terms, nil
}

// oboQuoted extracts the quoted text of a synonym line:
//	synonym: "seizures" EXACT []
func oboQuoted(s string) string {
	start := strings.Index(s, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(s[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return s[start+1 : start+1+end]
}

// parseJSON accepts either a {"terms": [{"id", "name", "synonyms"}]} document
// or a flat {"term": "ID"} object.
func parseJSON(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Terms []struct {
			ID       string   `json:"id"`
			Name     string   `json:"name"`
			Synonyms []string `json:"synonyms"`
		} `json:"terms"`
	}
	if err := json.Unmarshal(b, &doc); err == nil && len(doc.Terms) > 0 {
		terms := make(map[string]string, len(doc.Terms))
		for _, t := range doc.Terms {
			if t.ID == "" {
				continue
			}
			if n := Normalize(t.Name); n != "" {
				terms[n] = t.ID
			}
			for _, syn := range t.Synonyms {
				if n := Normalize(syn); n != "" {
					terms[n] = t.ID
				}
			}
		}
		return terms, nil
	}
	var flat map[string]string
	if err := json.Unmarshal(b, &flat); err != nil {
		return nil, fmt.Errorf("ontology: parse %s: %w", path, err)
	}
	terms := make(map[string]string, len(flat))
	for name, id := range flat {
		if n := Normalize(name); n != "" {
			terms[n] = id
		}
	}
	return terms, nil
}
