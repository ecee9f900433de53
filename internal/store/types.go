package store

import "time"

// File is an indexed Python source file.
type File struct {
	ID          int64
	Path        string
	Module      string
	Hash        string
	LineCount   int
	LastIndexed time.Time
}

// Import records a module a file imports from, by absolute name.
type Import struct {
	ID     int64
	FileID int64
	Module string
}

// Callable is an indexed function, method, class or record.
type Callable struct {
	ID            int64
	FileID        int64
	Qualname      string
	Kind          string
	StartLine     int
	EndLine       int
	Docstring     string
	DelegatesTo   string // resolved "module:qualname", or "" when none
	SignatureHash string
	Error         string // extraction failure, when no params could be produced
}

// Param is one documented entry of a callable. The return entry has
// Name "return" and Kind "return".
type Param struct {
	ID         int64
	CallableID int64
	Ordinal    int
	Name       string
	Kind       string
	Docment    *string
	Anno       string
	Default    string
}

// ReturnKind is the Param.Kind of the return entry.
const ReturnKind = "return"
