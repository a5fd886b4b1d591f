package analysis

import (
	"errors"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/roundtable/core"
)

var (
	// ErrNotObject is returned when the response is not a JSON object, even after repair.
	ErrNotObject = errors.New("analysis response is not a JSON object")
	// ErrNoKnownFields is returned when a valid object carries none of the analysis fields.
	ErrNoKnownFields = errors.New("analysis response has no known fields")
)

var (
	fencePattern         = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	quoteReplacer        = strings.NewReplacer("“", `"`, "”", `"`, "„", `"`, "‘", "'", "’", "'")
	knownFields          = []string{"mainPoints", "participantStances", "conflicts", "commonGround", "unexploredAreas"}
)

// Parse turns a raw model response into an Analysis. Strict parsing is tried
// first; on failure one structural repair is attempted. Entries of the wrong
// shape are dropped instead of rejecting the whole result.
func Parse(raw string) (*core.Analysis, error) {
	text := strings.TrimSpace(raw)
	if !isObject(text) {
		text = Repair(text)
		if !isObject(text) {
			return nil, &core.FormatError{What: "analysis", Err: ErrNotObject}
		}
	}
	doc := gjson.Parse(text)
	found := false
	for _, f := range knownFields {
		if doc.Get(f).Exists() {
			found = true
			break
		}
	}
	if !found {
		return nil, &core.FormatError{What: "analysis", Err: ErrNoKnownFields}
	}
	return &core.Analysis{
		MainPoints:         mainPoints(doc.Get("mainPoints")),
		ParticipantStances: stances(doc.Get("participantStances")),
		Conflicts:          conflicts(doc.Get("conflicts")),
		CommonGround:       strs(doc.Get("commonGround")),
		UnexploredAreas:    strs(doc.Get("unexploredAreas")),
	}, nil
}

// Repair applies a best-effort structural fix: markdown fences are stripped,
// typographic quotes normalised, the outermost object sliced out and trailing
// commas removed.
func Repair(text string) string {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = quoteReplacer.Replace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return trailingCommaPattern.ReplaceAllString(text, "$1")
}

func isObject(text string) bool {
	return gjson.Valid(text) && gjson.Parse(text).IsObject()
}

func str(r gjson.Result) (string, bool) {
	if r.Type != gjson.String {
		return "", false
	}
	s := strings.TrimSpace(r.Str)
	return s, s != ""
}

func strs(r gjson.Result) []string {
	if !r.IsArray() {
		return nil
	}
	var out []string
	r.ForEach(func(_, v gjson.Result) bool {
		if s, ok := str(v); ok {
			out = append(out, s)
		}
		return true
	})
	return out
}

func mainPoints(r gjson.Result) []core.MainPoint {
	if !r.IsArray() {
		return nil
	}
	var out []core.MainPoint
	r.ForEach(func(_, v gjson.Result) bool {
		if !v.IsObject() {
			return true
		}
		point, ok := str(v.Get("point"))
		if !ok {
			return true
		}
		desc, _ := str(v.Get("description"))
		out = append(out, core.MainPoint{Point: point, Description: desc})
		return true
	})
	return out
}

func stances(r gjson.Result) []core.Stance {
	if !r.IsArray() {
		return nil
	}
	var out []core.Stance
	r.ForEach(func(_, v gjson.Result) bool {
		if !v.IsObject() {
			return true
		}
		who, ok := str(v.Get("participant"))
		if !ok {
			return true
		}
		stance, ok := str(v.Get("stance"))
		if !ok {
			return true
		}
		out = append(out, core.Stance{Participant: who, Stance: stance, KeyArguments: strs(v.Get("keyArguments"))})
		return true
	})
	return out
}

func conflicts(r gjson.Result) []core.Conflict {
	if !r.IsArray() {
		return nil
	}
	var out []core.Conflict
	r.ForEach(func(_, v gjson.Result) bool {
		if !v.IsObject() {
			return true
		}
		issue, ok := str(v.Get("issue"))
		if !ok {
			return true
		}
		desc, _ := str(v.Get("description"))
		out = append(out, core.Conflict{Issue: issue, Sides: strs(v.Get("sides")), Description: desc})
		return true
	})
	return out
}
