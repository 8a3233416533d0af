package domain

// Image is a reference into the blob store: the store's stable object id plus
// the public URL it serves from. A zero Image means no image.
type Image struct {
	BlobID string `json:"blob_id" db:"blob_id"`
	URL    string `json:"url" db:"url"`
}

// Empty reports whether the reference points at nothing.
func (i Image) Empty() bool {
	return i.BlobID == ""
}
