// internal/snapshot/snapshot.go
package snapshot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/antchfx/htmlquery"
	json "github.com/json-iterator/go"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/ui5sel/api/schemas"
	"github.com/xkilldash9x/ui5sel/internal/registry"
)

var codec = json.ConfigCompatibleWithStandardLibrary

// ErrUnsupportedVersion is returned for snapshots written by a newer format.
var ErrUnsupportedVersion = errors.New("unsupported snapshot format version")

// Page is a captured page replayed offline. It implements registry.Runtime
// so the engines query it the same way they would a live page.
type Page struct {
	Snapshot *schemas.PageSnapshot
	// Doc is the parsed document node.
	Doc     *html.Node
	widgets registry.StaticRegistry
}

// New parses the snapshot's HTML and binds every widget to the element
// carrying its id. Widgets with no such element stay unrendered.
func New(snap *schemas.PageSnapshot) (*Page, error) {
	if snap == nil {
		return nil, errors.New("snapshot is nil")
	}
	if snap.FormatVersion > schemas.SnapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, snap.FormatVersion)
	}

	doc, err := htmlquery.Parse(strings.NewReader(snap.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot html: %w", err)
	}

	byID := make(map[string]*html.Node)
	for _, n := range htmlquery.Find(doc, "//*[@id]") {
		id := htmlquery.SelectAttr(n, "id")
		if _, seen := byID[id]; !seen {
			byID[id] = n
		}
	}

	p := &Page{Snapshot: snap, Doc: doc}
	for _, rec := range snap.Runtime.Widgets {
		p.widgets = append(p.widgets, &registry.StaticWidget{
			WidgetID:   rec.ID,
			Type:       rec.Type,
			Supertypes: rec.Ancestry,
			Properties: rec.Properties,
			Node:       byID[rec.ID],
		})
	}
	return p, nil
}

// Registry reports the captured registry. A snapshot taken while the
// registry was still loading yields an available but empty registry.
func (p *Page) Registry() (registry.Registry, bool) {
	rt := p.Snapshot.Runtime
	switch {
	case !rt.Available:
		return nil, false
	case rt.Loading:
		return nil, true
	}
	return p.widgets, true
}

// Widgets is the number of captured widgets.
func (p *Page) Widgets() int { return len(p.widgets) }

// Decode reads a snapshot document without building a page from it.
func Decode(r io.Reader) (*schemas.PageSnapshot, error) {
	var snap schemas.PageSnapshot
	if err := codec.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// Load decodes a snapshot and builds its page.
func Load(r io.Reader) (*Page, error) {
	snap, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return New(snap)
}

// LoadFile loads the snapshot stored at path.
func LoadFile(path string) (*Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Save writes snap as indented JSON, stamping the current format version.
func Save(w io.Writer, snap *schemas.PageSnapshot) error {
	if snap.FormatVersion == 0 {
		snap.FormatVersion = schemas.SnapshotVersion
	}
	enc := codec.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// SaveFile writes snap to path, replacing any existing file.
func SaveFile(path string, snap *schemas.PageSnapshot) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return Save(f, snap)
}
