package documents

import "github.com/ehr/ordercapture/internal/domain/diagnostics"

// ResolveAttachments returns the attachments explicitly related to order, in
// input order. There is no code or text fallback.
func ResolveAttachments(order *diagnostics.Order, attachments []*Attachment) []*Attachment {
	out := make([]*Attachment, 0, len(attachments))
	if order == nil {
		return out
	}
	ref := order.Reference()
	for _, a := range attachments {
		if a != nil && a.RelatedOrderRef == ref {
			out = append(out, a)
		}
	}
	return out
}
