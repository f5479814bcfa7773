package spec

// Entry is one module moving through a compile entry: its module name, the
// path it is read from, the build_dir-relative path it is written to and the
// module path recorded for the export step.
type Entry struct {
	Modname string
	Source  string
	Target  string
	Modpath string
}

// Compiled is the result of compiling one Entry.
type Compiled struct {
	Modpaths    map[string]string
	Targetpaths map[string]string
	ExportNames []string
}

// NewCompiled returns an empty result with allocated maps.
func NewCompiled() Compiled {
	return Compiled{
		Modpaths:    map[string]string{},
		Targetpaths: map[string]string{},
	}
}

// Merge folds other into c.
func (c *Compiled) Merge(other Compiled) {
	if c.Modpaths == nil {
		c.Modpaths = map[string]string{}
	}
	if c.Targetpaths == nil {
		c.Targetpaths = map[string]string{}
	}
	for k, v := range other.Modpaths {
		c.Modpaths[k] = v
	}
	for k, v := range other.Targetpaths {
		c.Targetpaths[k] = v
	}
	c.ExportNames = append(c.ExportNames, other.ExportNames...)
}
