package contentstore

import "context"

// Store is a content-addressed document store. UploadJSON pins a JSON
// document and returns its URI (e.g. ipfs://<cid>); FetchJSON resolves a
// URI back into a document.
type Store interface {
	UploadJSON(ctx context.Context, doc any) (string, error)
	FetchJSON(ctx context.Context, uri string, out any) error
}
