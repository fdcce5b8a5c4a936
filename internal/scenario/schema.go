package scenario

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed scenario.schema.json
var schemaJSON []byte

const schemaURL = "https://eris.ai/schemas/scenario.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func scenarioSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add scenario schema: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// SchemaJSON returns the embedded scenario schema.
func SchemaJSON() []byte { return append([]byte(nil), schemaJSON...) }

func validateSchema(doc *document) []Issue {
	s, err := scenarioSchema()
	if err != nil {
		return []Issue{{Rule: RuleSchema, Event: -1, Message: err.Error()}}
	}
	v, err := doc.jsonValue()
	if err != nil {
		return []Issue{{Rule: RuleParse, Event: -1, Message: err.Error()}}
	}
	err = s.Validate(v)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []Issue{{Rule: RuleSchema, Event: -1, Message: err.Error()}}
	}
	issues := schemaIssues(verr)
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Event < issues[j].Event })
	return issues
}

// schemaIssues flattens the validator's cause tree to its leaves, dropping
// duplicates produced by oneOf/allOf branches.
func schemaIssues(verr *jsonschema.ValidationError) []Issue {
	var out []Issue
	seen := map[string]bool{}
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, c := range e.Causes {
				walk(c)
			}
			return
		}
		is := issueAt(e.InstanceLocation, e.Message)
		key := is.String()
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, is)
	}
	walk(verr)
	return out
}

// issueAt maps a JSON pointer like /events/3/amount onto an Issue.
func issueAt(pointer, msg string) Issue {
	is := Issue{Rule: RuleSchema, Event: -1, Message: msg}
	parts := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	if len(parts) >= 2 && parts[0] == "events" {
		if n, err := strconv.Atoi(parts[1]); err == nil {
			is.Event = n
			is.Field = strings.Join(parts[2:], ".")
			if msg == "not allowed" && is.Field != "" {
				is.Message = "field not allowed for this event type"
			}
			return is
		}
	}
	if pointer != "" && pointer != "/" {
		is.Field = strings.Join(parts, ".")
	}
	return is
}
