package controldir

// Dir is the minimal filesystem capability a Prober or ControlDir
// needs at one location: reading and writing a small number of named
// control files. FileDir is the real-filesystem implementation (it
// writes each file directly, not through AtomicFile); MemoryDir is an
// in-memory stand-in for tests and programs that only need a control
// directory for the lifetime of one process.
type Dir interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
	Exists(name string) (bool, error)
}

// MemoryDir is an in-memory Dir.
type MemoryDir struct {
	files map[string][]byte
}

// NewMemoryDir returns an empty in-memory control directory.
func NewMemoryDir() *MemoryDir {
	return &MemoryDir{files: map[string][]byte{}}
}

func (d *MemoryDir) ReadFile(name string) ([]byte, error) {
	data, ok := d.files[name]
	if !ok {
		return nil, &NotBranchError{Path: name}
	}
	return append([]byte(nil), data...), nil
}

func (d *MemoryDir) WriteFile(name string, data []byte) error {
	d.files[name] = append([]byte(nil), data...)
	return nil
}

func (d *MemoryDir) Exists(name string) (bool, error) {
	_, ok := d.files[name]
	return ok, nil
}

// Prober decides whether a Dir holds a control directory of a
// particular kind, returning its Format.
type Prober interface {
	Probe(dir Dir) (*Format, error)
}

// SignatureProber is the common case: a fixed control file holds an
// exact byte-string signature, looked up in a Registry.
type SignatureProber struct {
	ControlFile string
	Registry    *Registry
}

// Probe implements Prober.
func (p *SignatureProber) Probe(dir Dir) (*Format, error) {
	exists, err := dir.Exists(p.ControlFile)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &NotBranchError{Path: p.ControlFile}
	}
	data, err := dir.ReadFile(p.ControlFile)
	if err != nil {
		return nil, err
	}
	signature := string(data)
	f, ok := p.Registry.Lookup(signature)
	if !ok {
		return nil, &UnknownFormatError{Signature: signature}
	}
	return f, nil
}

// ProberSet orders the probers spec §4.5 requires: server-side probers
// (for smart-server/network locations, which can often answer without
// touching the filesystem at all) are tried before local-filesystem
// probers.
type ProberSet struct {
	Server []Prober
	Local  []Prober
}

// Probe tries every server prober, then every local prober, in order,
// returning the first match. An unrecognized signature produces
// *UnknownFormatError; no control file at all produces *NotBranchError.
// A recognized-but-unsupported format produces *UnsupportedFormatError
// unless allowUnsupported is true.
func (ps *ProberSet) Probe(dir Dir, allowUnsupported bool) (*Format, error) {
	var lastUnknown error
	for _, p := range ps.all() {
		f, err := p.Probe(dir)
		if err == nil {
			if !f.Supported && !allowUnsupported {
				return nil, &UnsupportedFormatError{Format: f}
			}
			return f, nil
		}
		switch err.(type) {
		case *NotBranchError:
			continue
		case *UnknownFormatError:
			lastUnknown = err
			continue
		default:
			return nil, err
		}
	}
	if lastUnknown != nil {
		return nil, lastUnknown
	}
	return nil, &NotBranchError{}
}

func (ps *ProberSet) all() []Prober {
	out := make([]Prober, 0, len(ps.Server)+len(ps.Local))
	out = append(out, ps.Server...)
	out = append(out, ps.Local...)
	return out
}
