package l0

import "fmt"

// Config is a typed key/value settings map holding L0's own knobs:
// evaluator/macro-expansion depth caps, the arena's initial block size, and
// the emitter's ABI prefix.
type Config map[string]*cfgVal

// NewConfig creates a configuration primed with every default this module's
// components read: the eval/macro-expansion depth caps, the arena's
// default block size, and the emitted C symbols' prefix.
func NewConfig() *Config {
	m := make(Config)
	m.SetInt("eval.max_depth", maxEvalDepth)
	m.SetInt("macro.max_expand_depth", maxMacroExpandDepth)
	m.SetInt("codegen.max_depth", maxEmitDepth)
	m.SetInt("arena.initial_block_bytes", defaultBlockSize)
	m.SetInt("arena.max_bytes", 0) // 0 = unbounded
	m.SetString("codegen.abi_prefix", "l0_")
	return &m
}

type cfgValType int

const (
	cfgValUndefined cfgValType = iota
	cfgValBool
	cfgValInt
	cfgValString
)

func (vt cfgValType) String() string {
	return map[cfgValType]string{
		cfgValUndefined: "undefined",
		cfgValBool:      "bool",
		cfgValInt:       "int",
		cfgValString:    "string",
	}[vt]
}

type cfgVal struct {
	typ      cfgValType
	asBool   bool
	asInt    int
	asString string
}

func (v *cfgVal) assignType(vt cfgValType) {
	if v.typ != vt && v.typ != cfgValUndefined {
		panic(fmt.Sprintf("can't assign %s to a %s setting", vt, v.typ))
	}
	v.typ = vt
}

func (v *cfgVal) checkType(vt cfgValType) {
	if v.typ != vt {
		panic(fmt.Sprintf("can't retrieve %s from a %s setting", vt, v.typ))
	}
}

func (c *Config) SetBool(path string, v bool) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValBool)
	(*c)[path].asBool = v
}

func (c *Config) SetInt(path string, v int) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValInt)
	(*c)[path].asInt = v
}

func (c *Config) SetString(path string, v string) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValString)
	(*c)[path].asString = v
}

func (c *Config) GetBool(path string) bool {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValBool)
		return val.asBool
	}
	panic(fmt.Sprintf("bool setting %q does not exist", path))
}

func (c *Config) GetInt(path string) int {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValInt)
		return val.asInt
	}
	panic(fmt.Sprintf("int setting %q does not exist", path))
}

func (c *Config) GetString(path string) string {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValString)
		return val.asString
	}
	panic(fmt.Sprintf("string setting %q does not exist", path))
}
