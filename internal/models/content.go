package models

import "time"

// ContentKind identifies which of the four content tables a file lives in.
type ContentKind string

const (
	KindDocument ContentKind = "document"
	KindPatch    ContentKind = "patch"
	KindLinkFile ContentKind = "link_file"
	KindMiscFile ContentKind = "misc_file"
)

// ParseContentKind validates a client-supplied item type string.
func ParseContentKind(raw string) (ContentKind, bool) {
	switch ContentKind(raw) {
	case KindDocument, KindPatch, KindLinkFile, KindMiscFile:
		return ContentKind(raw), true
	default:
		return "", false
	}
}

// StorageSubdir returns the canonical storage subdirectory for the kind.
func (k ContentKind) StorageSubdir() string {
	switch k {
	case KindDocument:
		return "documents"
	case KindPatch:
		return "patches"
	case KindLinkFile:
		return "links"
	case KindMiscFile:
		return "misc"
	default:
		return "other"
	}
}

// ContentRecord is the unified row shape shared by the four content tables.
// Exactly one owning context is set per kind: documents and misc files hang
// off a software id, patches and link files off a version id.
// Invariant: IsExternal == false implies StoredFilename is set and a physical
// file exists at the canonical path; IsExternal == true implies neither.
type ContentRecord struct {
	ID               string      `db:"id" json:"id"`
	Kind             ContentKind `db:"-" json:"item_type"`
	SoftwareID       *string     `db:"software_id" json:"software_id,omitempty"`
	VersionID        *string     `db:"version_id" json:"version_id,omitempty"`
	CategoryID       *string     `db:"category_id" json:"category_id,omitempty"`
	Name             string      `db:"name" json:"name"`
	StoredFilename   *string     `db:"stored_filename" json:"stored_filename,omitempty"`
	OriginalFilename string      `db:"original_filename" json:"original_filename"`
	FileSize         int64       `db:"file_size" json:"file_size"`
	MimeType         string      `db:"mime_type" json:"mime_type"`
	IsExternal       bool        `db:"is_external" json:"is_external"`
	ExternalURL      *string     `db:"external_url" json:"external_url,omitempty"`
	CreatedBy        *string     `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy        *string     `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

// ContentDetail is a ContentRecord joined with its human-readable foreign
// keys, returned as the result of a successful finalize.
type ContentDetail struct {
	ContentRecord
	SoftwareName  *string `db:"software_name" json:"software_name,omitempty"`
	VersionNumber *string `db:"version_number" json:"version_number,omitempty"`
	CategoryName  *string `db:"category_name" json:"category_name,omitempty"`
	UploaderName  *string `db:"uploader_name" json:"uploader_name,omitempty"`
}
