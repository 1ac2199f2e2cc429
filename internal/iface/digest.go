package iface

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// canonicalFunc and canonicalClass/Enum exist purely so json.Marshal
// sees sorted slices instead of Go's randomized map iteration order —
// map values alone would make the digest nondeterministic across runs.
type canonicalFunc struct {
	Name   string   `json:"name"`
	Params []string `json:"params"`
	Ret    string   `json:"ret"`
}

type canonicalClass struct {
	Name    string           `json:"name"`
	Traits  []string         `json:"traits"`
	Fields  []canonicalField `json:"fields"`
	Methods []canonicalFunc  `json:"methods"`
}

type canonicalField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type canonicalEnum struct {
	Name     string              `json:"name"`
	Variants []canonicalVariant  `json:"variants"`
}

type canonicalVariant struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

type canonicalIface struct {
	Module  string           `json:"module"`
	Schema  string           `json:"schema"`
	Funcs   []canonicalFunc  `json:"funcs"`
	Classes []canonicalClass `json:"classes"`
	Enums   []canonicalEnum  `json:"enums"`
}

// computeDigest renders iface into a key-sorted canonical form and hashes
// it with SHA-256, mirroring the teacher's own "sort then JSON-marshal
// then hash" approach to a reproducible interface fingerprint.
func computeDigest(iface *Iface) string {
	c := canonicalIface{Module: iface.Module, Schema: iface.Schema}

	funcNames := sortedKeys(iface.Funcs)
	for _, name := range funcNames {
		f := iface.Funcs[name]
		c.Funcs = append(c.Funcs, canonicalFunc{Name: f.Name, Params: f.Params, Ret: f.Ret})
	}

	classNames := make([]string, 0, len(iface.Classes))
	for name := range iface.Classes {
		classNames = append(classNames, name)
	}
	sort.Strings(classNames)
	for _, name := range classNames {
		cls := iface.Classes[name]
		cc := canonicalClass{Name: cls.Name, Traits: append([]string{}, cls.Traits...)}
		sort.Strings(cc.Traits)
		for _, fname := range sortedKeys(cls.Fields) {
			cc.Fields = append(cc.Fields, canonicalField{Name: fname, Type: cls.Fields[fname]})
		}
		for _, mname := range sortedKeys(cls.Methods) {
			m := cls.Methods[mname]
			cc.Methods = append(cc.Methods, canonicalFunc{Name: m.Name, Params: m.Params, Ret: m.Ret})
		}
		c.Classes = append(c.Classes, cc)
	}

	enumNames := make([]string, 0, len(iface.Enums))
	for name := range iface.Enums {
		enumNames = append(enumNames, name)
	}
	sort.Strings(enumNames)
	for _, name := range enumNames {
		en := iface.Enums[name]
		ce := canonicalEnum{Name: en.Name}
		variantNames := make([]string, 0, len(en.Variants))
		for vname := range en.Variants {
			variantNames = append(variantNames, vname)
		}
		sort.Strings(variantNames)
		for _, vname := range variantNames {
			ce.Variants = append(ce.Variants, canonicalVariant{Name: vname, Fields: en.Variants[vname]})
		}
		c.Enums = append(c.Enums, ce)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
