package epub

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sync"
)

// Archive is an opened EPUB with its package document and navigation parsed.
// Part contents are read lazily through the zip handle until Materialize
// is called, after which the handle is released and reads are served from
// memory.
type Archive struct {
	path    string
	reader  *Reader
	opf     *OPF
	opfDir  string
	parts   []Part
	byName  map[string]int
	byID    map[string]int
	nav     []NavEntry
	content map[string][]byte

	// readErrs keeps the per-part failures seen by Materialize.
	readErrs map[string]error

	mu     sync.Mutex
	closed bool
}

// OpenArchive opens the EPUB at name. A missing file yields an error
// wrapping ErrArchiveNotFound; any container, zip or package document
// violation yields one wrapping ErrArchiveCorrupt.
func OpenArchive(name string) (*Archive, error) {
	info, err := os.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, name)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrArchiveCorrupt, name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrArchiveCorrupt, name)
	}

	r, err := Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArchiveCorrupt, name, err)
	}

	a, err := newArchive(name, r)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrArchiveCorrupt, name, err)
	}
	return a, nil
}

func newArchive(name string, r *Reader) (*Archive, error) {
	opfData, err := r.ReadFile(r.OPFPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read OPF: %w", err)
	}

	opfDir := path.Dir(r.OPFPath())
	if opfDir == "." {
		opfDir = ""
	}
	opf, err := ParseOPF(opfData, opfDir)
	if err != nil {
		return nil, err
	}
	if len(opf.Spine) == 0 {
		return nil, errors.New("OPF declares an empty spine")
	}

	a := &Archive{
		path:   name,
		reader: r,
		opf:    opf,
		opfDir: opfDir,
		byName: make(map[string]int, len(opf.ManifestOrder)),
		byID:   make(map[string]int, len(opf.ManifestOrder)),
	}
	for _, id := range opf.ManifestOrder {
		item := opf.Manifest[id]
		p := Part{
			ID:        id,
			Name:      relativeTo(opfDir, item.Href),
			Path:      item.Href,
			MediaType: item.MediaType,
		}
		if _, dup := a.byName[p.Name]; dup {
			continue
		}
		a.byID[id] = len(a.parts)
		a.byName[p.Name] = len(a.parts)
		a.parts = append(a.parts, p)
	}

	// A broken navigation document degrades to the spine; it never fails
	// the whole archive.
	if ncx, err := LoadNCX(r, opf); err == nil {
		for _, np := range ncx.Flatten() {
			href := relativeTo(opfDir, np.ContentPath)
			if np.Fragment != "" {
				href += "#" + np.Fragment
			}
			a.nav = append(a.nav, NavEntry{Title: np.Label, Href: href})
		}
	}

	return a, nil
}

// Path returns the file system path the archive was opened from.
func (a *Archive) Path() string { return a.path }

// Metadata returns the package metadata.
func (a *Archive) Metadata() Metadata { return a.opf.Metadata }

// Parts lists the manifest parts in declared order.
func (a *Archive) Parts() []Part {
	out := make([]Part, len(a.parts))
	copy(out, a.parts)
	return out
}

// Part looks up a part by its name.
func (a *Archive) Part(name string) (Part, bool) {
	i, ok := a.byName[name]
	if !ok {
		return Part{}, false
	}
	return a.parts[i], true
}

// PartForID resolves a manifest id (as used by the spine) to its part.
func (a *Archive) PartForID(id string) (Part, bool) {
	i, ok := a.byID[id]
	if !ok {
		return Part{}, false
	}
	return a.parts[i], true
}

// Navigation returns the flattened table of contents, empty when the book
// has no usable navigation document.
func (a *Archive) Navigation() []NavEntry {
	out := make([]NavEntry, len(a.nav))
	copy(out, a.nav)
	return out
}

// ReadingOrder returns the spine idrefs in order.
func (a *Archive) ReadingOrder() []string {
	out := make([]string, 0, len(a.opf.Spine))
	for _, s := range a.opf.Spine {
		out = append(out, s.IDRef)
	}
	return out
}

// Cover returns the detected cover part.
func (a *Archive) Cover() (Part, bool) {
	c := a.opf.DetectCover()
	if c == nil {
		return Part{}, false
	}
	return a.PartForID(c.ManifestID)
}

// ReadPart returns the bytes of the named part.
func (a *Archive) ReadPart(name string) ([]byte, error) {
	p, ok := a.Part(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.content != nil {
		if err, failed := a.readErrs[p.Path]; failed {
			return nil, err
		}
		data, ok := a.content[p.Path]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return data, nil
	}
	if a.closed {
		return nil, fmt.Errorf("epub: read %s: archive closed", name)
	}
	data, err := a.reader.ReadFile(p.Path)
	if err != nil {
		return nil, a.readFailed(name, err)
	}
	return data, nil
}

// readFailed wraps a part read failure. A part absent from the zip keeps
// ErrFileNotFound; any other failure means the entry itself is damaged.
func (a *Archive) readFailed(name string, err error) error {
	if errors.Is(err, ErrFileNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: read %s: %w", ErrArchiveCorrupt, a.path, name, err)
}

// Materialize reads every manifest part into memory and releases the zip
// handle. Parts missing from the zip are omitted; parts that fail to read
// keep their error, which ReadPart returns, so a cached archive answers
// exactly like a freshly opened one.
func (a *Archive) Materialize() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.content != nil {
		return nil
	}
	if a.closed {
		return errors.New("epub: materialize: archive closed")
	}

	content := make(map[string][]byte, len(a.parts))
	readErrs := make(map[string]error)
	for _, p := range a.parts {
		data, err := a.reader.ReadFile(p.Path)
		if errors.Is(err, ErrFileNotFound) {
			continue
		}
		if err != nil {
			readErrs[p.Path] = a.readFailed(p.Name, err)
			continue
		}
		content[p.Path] = data
	}
	a.content = content
	a.readErrs = readErrs
	a.closed = true
	return a.reader.Close()
}

// Close releases the zip handle. It is safe to call more than once.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return a.reader.Close()
}
