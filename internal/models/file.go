package models

// Filetype is the system category a signed upload belongs to.
type Filetype string

const (
	FiletypeAvatar     Filetype = "avatar"
	FiletypeFileInChat Filetype = "file_in_chat"
)

// FileMeta describes one variant of a file produced by the upload service,
// together with the signature that service attached to it.
type FileMeta struct {
	URL       string   `json:"url"`
	Filename  string   `json:"filename"`
	Filetype  Filetype `json:"system_filetype"`
	Signature string   `json:"signature"`
}

// UploadingFile is an untrusted file reference submitted by a client.
type UploadingFile struct {
	Original  FileMeta  `json:"original"`
	Converted *FileMeta `json:"converted,omitempty"`
}

// ToSaved converts the upload into a not yet persisted SavedFile.
func (f UploadingFile) ToSaved() SavedFile {
	saved := SavedFile{
		OriginalURL:      f.Original.URL,
		OriginalFilename: f.Original.Filename,
	}
	if f.Converted != nil {
		saved.ConvertedURL = f.Converted.URL
		saved.ConvertedFilename = f.Converted.Filename
	}
	return saved
}

// SavedFile is a trusted file record. ID is zero until persisted; the
// generated default avatar always has ID zero.
type SavedFile struct {
	ID                int64  `json:"id"`
	OriginalURL       string `json:"original_url"`
	OriginalFilename  string `json:"original_filename"`
	ConvertedURL      string `json:"converted_url,omitempty"`
	ConvertedFilename string `json:"converted_filename,omitempty"`
}
