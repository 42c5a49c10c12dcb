package server

// Hand-written in the shape `easyjson` itself generates (see the
// teacher's version_easyjson.go): a MarshalEasyJSON method on every type,
// plus a MarshalJSON wrapper on the two top-level response types
// (InfoDocument, CacheListJSON), so these response bodies are built
// with jwriter.Writer's buffer instead of reflection-based encoding/json.
// These types are responses only, never request bodies, so only the
// encode half is implemented — there is no Unmarshal counterpart to
// generate.

import (
	"github.com/mailru/easyjson/jwriter"
)

// SizeJSON is one entry of info.json's "sizes" list.
type SizeJSON struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s SizeJSON) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"width":`)
	w.Int(s.Width)
	w.RawString(`,"height":`)
	w.Int(s.Height)
	w.RawByte('}')
}

// InfoDocument is the IIIF Image API "info.json" description of a master.
type InfoDocument struct {
	ID       string
	Width    int
	Height   int
	Profile  string
	Sizes    []SizeJSON
	TileSize int // 0 means "no native tiling to advertise"
}

func (d InfoDocument) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	d.MarshalEasyJSON(&w)
	return w.Buffer.BuildBytes(), w.Error
}

func (d InfoDocument) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"@context":"http://iiif.io/api/image/2/context.json"`)
	w.RawString(`,"@id":`)
	w.String(d.ID)
	w.RawString(`,"protocol":"http://iiif.io/api/image"`)
	w.RawString(`,"width":`)
	w.Int(d.Width)
	w.RawString(`,"height":`)
	w.Int(d.Height)
	w.RawString(`,"profile":["` + d.Profile + `"]`)

	if len(d.Sizes) > 0 {
		w.RawString(`,"sizes":[`)
		for i, sz := range d.Sizes {
			if i > 0 {
				w.RawByte(',')
			}
			sz.MarshalEasyJSON(w)
		}
		w.RawByte(']')
	}

	if d.TileSize > 0 {
		w.RawString(`,"tiles":[{"width":`)
		w.Int(d.TileSize)
		w.RawString(`,"scaleFactors":[1,2,4,8]}]`)
	}

	w.RawByte('}')
}

// CacheEntryJSON is one row of the admin cache listing. LastAccess and
// CreatedAt are pre-formatted strings (see timex.ISO) rather than
// time.Time, so this package stays free of a time-formatting policy of
// its own.
type CacheEntryJSON struct {
	Fingerprint string
	SizeBytes   int64
	ContentType string
	LastAccess  string
	CreatedAt   string
}

func (e CacheEntryJSON) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"fingerprint":`)
	w.String(e.Fingerprint)
	w.RawString(`,"size_bytes":`)
	w.Int64(e.SizeBytes)
	w.RawString(`,"content_type":`)
	w.String(e.ContentType)
	w.RawString(`,"last_access":`)
	w.String(e.LastAccess)
	w.RawString(`,"created_at":`)
	w.String(e.CreatedAt)
	w.RawByte('}')
}

// CacheListJSON is the admin "list cache entries" response body.
type CacheListJSON struct {
	Entries   []CacheEntryJSON
	Count     int
	TotalSize int64
	MaxSize   int64
	CacheDir  string
}

func (l CacheListJSON) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	l.MarshalEasyJSON(&w)
	return w.Buffer.BuildBytes(), w.Error
}

func (l CacheListJSON) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"cache_dir":`)
	w.String(l.CacheDir)
	w.RawString(`,"count":`)
	w.Int(l.Count)
	w.RawString(`,"total_bytes":`)
	w.Int64(l.TotalSize)
	w.RawString(`,"max_bytes":`)
	w.Int64(l.MaxSize)
	w.RawString(`,"entries":[`)
	for i, e := range l.Entries {
		if i > 0 {
			w.RawByte(',')
		}
		e.MarshalEasyJSON(w)
	}
	w.RawString(`]}`)
}
