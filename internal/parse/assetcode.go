package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var codeRe = regexp.MustCompile(`^([A-Za-z]+)[-_]([A-Za-z]+\d+)[-_](\d+)$`)

// ParsedCode holds the structured data parsed from a fleet asset code.
// Codes look like "EXC-YD2-014": type prefix, yard code, sequence number.
type ParsedCode struct {
	TypeCode string
	Yard     string
	Seq      int
}

// typeLabels maps asset-code type prefixes to the machine-type labels the
// console displays. Unknown prefixes fall through to the raw prefix.
var typeLabels = map[string]string{
	"EXC": "Excavator",
	"CRN": "Crane",
	"LDR": "Loader",
	"DOZ": "Bulldozer",
	"GRD": "Grader",
	"RLR": "Roller",
	"DMP": "Dump Truck",
	"GEN": "Generator",
	"CMP": "Compressor",
	"BPM": "Batching Plant",
}

// TypeLabel returns the display label for an asset-code type prefix.
func TypeLabel(typeCode string) string {
	if label, ok := typeLabels[strings.ToUpper(typeCode)]; ok {
		return label
	}
	return strings.ToUpper(typeCode)
}

// ParseAssetCode extracts the type prefix, yard code, and sequence number
// from a raw asset code string.
func ParseAssetCode(raw string) (ParsedCode, error) {
	s := strings.TrimSpace(raw)
	m := codeRe.FindStringSubmatch(s)
	if m == nil {
		return ParsedCode{}, fmt.Errorf("unable to parse asset code: %q", raw)
	}
	seq, err := strconv.Atoi(m[3])
	if err != nil {
		return ParsedCode{}, fmt.Errorf("unable to parse sequence in asset code %q: %w", raw, err)
	}
	return ParsedCode{
		TypeCode: strings.ToUpper(m[1]),
		Yard:     strings.ToUpper(m[2]),
		Seq:      seq,
	}, nil
}
