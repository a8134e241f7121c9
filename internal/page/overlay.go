package page

import (
	"context"

	"github.com/GriffinCanCode/aptools/internal/domain/media"
)

// closeButtonSelector matches the close control of the completion modal.
const closeButtonSelector = `[data-test-id="modal-close-button"]`

// DocumentOverlay looks for the completion modal in the last served
// document. There is no live DOM to click, so dismissal only reports whether
// the modal was present; the reload that follows removes it.
type DocumentOverlay struct {
	documents *media.DocumentStore
}

// NewDocumentOverlay creates an overlay over documents.
func NewDocumentOverlay(documents *media.DocumentStore) *DocumentOverlay {
	return &DocumentOverlay{documents: documents}
}

func (o *DocumentOverlay) Dismiss(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	data, _ := o.documents.Latest()
	if len(data) == 0 {
		return false, nil
	}
	doc, err := media.LoadHTML(data)
	if err != nil {
		return false, err
	}
	return doc.Find(closeButtonSelector).Length() > 0, nil
}
