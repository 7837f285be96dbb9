package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Shape extraction
	ShpInfo             Code = 1000
	ShpUnknownKind      Code = 1001
	ShpEmbeddedField    Code = 1002
	ShpTupleFieldName   Code = 1003
	ShpDuplicateVariant Code = 1004
	ShpUnknownVariant   Code = 1005
	ShpVariantKind      Code = 1006
	ShpSumCycle         Code = 1007
	ShpNoMarker         Code = 1008
	ShpBadNamespace     Code = 1009
	ShpTooFewFields     Code = 1010
	ShpDuplicateField   Code = 1011
	ShpBadTypeParam     Code = 1012

	// Attribute interpretation
	AtrInfo              Code = 2000
	AtrUnknownKey        Code = 2001
	AtrKindMismatch      Code = 2002
	AtrMissingValue      Code = 2003
	AtrUnexpectedValue   Code = 2004
	AtrDuplicateKey      Code = 2005
	AtrMalformed         Code = 2006
	AtrUnknownCapability Code = 2007

	// Capability resolution
	CapInfo                 Code = 3000
	CapUnsupportedMode      Code = 3001
	CapFieldUnsatisfied     Code = 3002
	CapUnsupportedFieldType Code = 3003
	CapMissingRequiredField Code = 3004
	CapConflictingField     Code = 3005
	CapNotEnabled           Code = 3006
	CapParamBound           Code = 3007

	// Feature gate and IO
	GateInfo              Code = 4000
	GateNoMode            Code = 4001
	GateUnknownCapability Code = 4002
	GateNotCompiled       Code = 4003
	GateNoSupportedMode   Code = 4004
	GateBadConfig         Code = 4005
	IOLoadFile            Code = 4100
	IOParseFile           Code = 4101

	// Engine bugs
	IntInvariant Code = 9001
)

var codeDescription = map[Code]string{
	UnknownCode: "Unknown error",

	ShpInfo:             "Shape information",
	ShpUnknownKind:      "Declaration kind is not derivable",
	ShpEmbeddedField:    "Embedded fields are not supported",
	ShpTupleFieldName:   "Tuple field is not positional",
	ShpDuplicateVariant: "Duplicate sum variant",
	ShpUnknownVariant:   "Sum variant is not declared in the package",
	ShpVariantKind:      "Sum variant has an unsupported shape",
	ShpSumCycle:         "Sum variants form a cycle",
	ShpNoMarker:         "Sum interface has no marker method",
	ShpBadNamespace:     "Invalid namespace",
	ShpTooFewFields:     "Shape has fewer fields than required",
	ShpDuplicateField:   "Duplicate field name",
	ShpBadTypeParam:     "Invalid type parameter",

	AtrInfo:              "Attribute information",
	AtrUnknownKey:        "Unknown option for capability",
	AtrKindMismatch:      "Option value has the wrong kind",
	AtrMissingValue:      "Option requires a value",
	AtrUnexpectedValue:   "Flag option does not take a value",
	AtrDuplicateKey:      "Option given more than once",
	AtrMalformed:         "Malformed directive",
	AtrUnknownCapability: "Unknown capability",

	CapInfo:                 "Capability information",
	CapUnsupportedMode:      "Capability has no implementation for this environment",
	CapFieldUnsatisfied:     "Field type does not satisfy capability",
	CapUnsupportedFieldType: "Field type kind is not supported by capability",
	CapMissingRequiredField: "Required field is missing",
	CapConflictingField:     "Conflicting fields for capability",
	CapNotEnabled:           "Capability is not enabled",
	CapParamBound:           "Type parameter bound does not satisfy capability",

	GateInfo:              "Feature gate information",
	GateNoMode:            "No environment mode enabled",
	GateUnknownCapability: "Unknown capability in configuration",
	GateNotCompiled:       "Capability not compiled into this build",
	GateNoSupportedMode:   "Capability supports none of the enabled modes",
	GateBadConfig:         "Invalid configuration",
	IOLoadFile:            "Failed to load file",
	IOParseFile:           "Failed to parse file",

	IntInvariant: "Internal invariant violation",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("SHP%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("ATR%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("CAP%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("GATE%04d", ic)
	case ic >= 9000 && ic < 10000:
		return fmt.Sprintf("INT%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
