package dbpf

import (
	"fmt"

	"github.com/hupe1980/dbpfindex/tgi"
)

// Well-known resource type ids.
const (
	TypeExemplar uint32 = 0x6534284a
	TypeCohort   uint32 = 0x05342861
	TypeDIR      uint32 = 0xe86b1eef
	TypeLText    uint32 = 0x2026960b
	TypePNG      uint32 = 0x856ddbac
	TypeFSH      uint32 = 0x7ab50e44
	TypeS3D      uint32 = 0x5ad0e817
	TypeLD       uint32 = 0x6be74c60
	TypeXML      uint32 = 0x88777601
	TypeLUA      uint32 = 0xca63e2a3
	TypeRUL      uint32 = 0x0a5bcf4b
)

// DirTGI identifies the directory record listing compressed entries.
var DirTGI = tgi.New(TypeDIR, TypeDIR, 0x286b1f03)

var typeNames = map[uint32]string{
	TypeExemplar: "Exemplar",
	TypeCohort:   "Cohort",
	TypeDIR:      "DIR",
	TypeLText:    "LText",
	TypePNG:      "PNG",
	TypeFSH:      "FSH",
	TypeS3D:      "S3D",
	TypeLD:       "LD",
	TypeXML:      "XML",
	TypeLUA:      "LUA",
	TypeRUL:      "RUL",
}

// TypeName returns a human readable name for t, or its hex form.
func TypeName(t uint32) string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("0x%08x", t)
}

// IsExemplar reports whether t holds a property table.
func IsExemplar(t uint32) bool {
	return t == TypeExemplar || t == TypeCohort
}
