// Command validate checks scenario files without running them.
//
//	validate [-json] [-q] <dir or file>...
//
// Exit status is 1 when any file fails validation.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"eris.ai/internal/scenario"
)

func main() {
	os.Exit(validate(os.Args[1:], os.Stdout, os.Stderr))
}

type fileReport struct {
	Path     string           `json:"path"`
	Scenario string           `json:"scenario,omitempty"`
	OK       bool             `json:"ok"`
	Events   int              `json:"events,omitempty"`
	Party    []string         `json:"party,omitempty"`
	Issues   []scenario.Issue `json:"issues,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func validate(args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(errOut)
	asJSON := fs.Bool("json", false, "print reports as JSON")
	quiet := fs.Bool("q", false, "only print failures")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(errOut, "usage: validate [-json] [-q] <dir or file>...")
		return 2
	}

	loader := scenario.Loader{Logger: log.New(io.Discard, "", 0)}
	var reports []fileReport
	for _, arg := range fs.Args() {
		st, err := os.Stat(arg)
		if err != nil {
			reports = append(reports, fileReport{Path: arg, Error: err.Error()})
			continue
		}
		if !st.IsDir() {
			reports = append(reports, check(&loader, arg))
			continue
		}
		dir, err := loader.LoadDir(arg)
		if err != nil {
			reports = append(reports, fileReport{Path: arg, Error: err.Error()})
			continue
		}
		reports = append(reports, dirReports(dir)...)
	}

	failed := 0
	for _, r := range reports {
		if !r.OK {
			failed++
		}
	}
	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(reports)
	} else {
		for _, r := range reports {
			if *quiet && r.OK {
				continue
			}
			printReport(out, r)
		}
		fmt.Fprintf(out, "%d files, %d invalid\n", len(reports), failed)
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func check(l *scenario.Loader, path string) fileReport {
	s, err := l.Load(path)
	if err != nil {
		return failure(path, err)
	}
	return success(path, s)
}

// dirReports needs the file path of every loaded scenario, which LoadDir does
// not keep, so loaded scenarios are reported by name.
func dirReports(dir scenario.DirResult) []fileReport {
	out := make([]fileReport, 0, len(dir.Scenarios)+len(dir.Errors))
	for _, s := range dir.Scenarios {
		out = append(out, success("", s))
	}
	paths := make([]string, 0, len(dir.Errors))
	for p := range dir.Errors {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		out = append(out, failure(p, dir.Errors[p]))
	}
	return out
}

func success(path string, s *scenario.Scenario) fileReport {
	return fileReport{
		Path:     path,
		Scenario: s.Name(),
		OK:       true,
		Events:   len(s.Events),
		Party:    s.PartyNames(),
		Warnings: s.Warnings,
	}
}

func failure(path string, err error) fileReport {
	r := fileReport{Path: path, Error: err.Error()}
	var verr *scenario.ValidationError
	if errors.As(err, &verr) {
		r.Scenario = verr.Scenario
		r.Issues = verr.Issues
	}
	return r
}

func printReport(out io.Writer, r fileReport) {
	label := r.Path
	if label == "" {
		label = r.Scenario
	}
	if r.OK {
		fmt.Fprintf(out, "ok      %s (%s): %d events, party %v\n", label, r.Scenario, r.Events, r.Party)
		for _, w := range r.Warnings {
			fmt.Fprintf(out, "  warn  %s\n", w)
		}
		return
	}
	fmt.Fprintf(out, "invalid %s\n", label)
	if len(r.Issues) == 0 {
		fmt.Fprintf(out, "  %s\n", r.Error)
		return
	}
	for _, is := range r.Issues {
		fmt.Fprintf(out, "  %s\n", is)
	}
}
