package main

import "github.com/jward/docments"

// CLIResult is the top-level JSON envelope for all commands except show,
// which prints the docments mapping itself.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLICallable is a JSON-friendly callable representation.
type CLICallable struct {
	Module      string `json:"module,omitempty"`
	Qualname    string `json:"qualname"`
	Kind        string `json:"kind"`
	File        string `json:"file,omitempty"`
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line,omitempty"`
	DelegatesTo string `json:"delegates_to,omitempty"`
	Error       string `json:"error,omitempty"`
}

// CLIEntry is an indexed callable with its docments.
type CLIEntry struct {
	CLICallable
	Docstring string           `json:"docstring,omitempty"`
	Docments  *docments.Result `json:"docments"`
}

// CLIMatch is one entry found by search or undocumented.
type CLIMatch struct {
	Module   string  `json:"module"`
	Qualname string  `json:"qualname"`
	File     string  `json:"file"`
	Param    string  `json:"param"`
	Kind     string  `json:"kind"`
	Docment  *string `json:"docment"`
}

// CLIFile is a JSON-friendly file representation.
type CLIFile struct {
	ID        int64  `json:"id"`
	Path      string `json:"path"`
	Module    string `json:"module"`
	LineCount int    `json:"line_count"`
}

// CLICoverage is a JSON-friendly coverage summary.
type CLICoverage struct {
	Callables  int     `json:"callables"`
	Failed     int     `json:"failed"`
	Params     int     `json:"params"`
	Documented int     `json:"documented"`
	Ratio      float64 `json:"ratio"`
}

// CLIIndexStats reports an indexing run.
type CLIIndexStats struct {
	Root      string   `json:"root"`
	Database  string   `json:"database"`
	Files     int      `json:"files"`
	Extracted int      `json:"extracted"`
	Unchanged int      `json:"unchanged"`
	Removed   int      `json:"removed"`
	Callables int      `json:"callables"`
	Failed    int      `json:"failed"`
	Changed   []string `json:"changed,omitempty"`
	Duration  string   `json:"duration"`
}

func callableToCLI(c *docments.IndexedCallable, module, file string) CLICallable {
	return CLICallable{
		Module:      module,
		Qualname:    c.Qualname,
		Kind:        c.Kind,
		File:        file,
		StartLine:   c.StartLine,
		EndLine:     c.EndLine,
		DelegatesTo: c.DelegatesTo,
		Error:       c.Error,
	}
}

func entryToCLI(e *docments.Entry, full bool) CLIEntry {
	return CLIEntry{
		CLICallable: callableToCLI(&e.IndexedCallable, e.Module, e.Path),
		Docstring:   e.Docstring,
		Docments:    e.Result(full),
	}
}

func matchToCLI(m *docments.ParamMatch) CLIMatch {
	return CLIMatch{
		Module:   m.Module,
		Qualname: m.Qualname,
		File:     m.Path,
		Param:    m.Param.Name,
		Kind:     m.Param.Kind,
		Docment:  m.Param.Docment,
	}
}

func fileToCLI(f *docments.File) CLIFile {
	return CLIFile{ID: f.ID, Path: f.Path, Module: f.Module, LineCount: f.LineCount}
}
