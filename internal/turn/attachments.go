package turn

import "github.com/google/uuid"

// AttachmentStatus is the upload state of a staged attachment.
type AttachmentStatus string

const (
	AttachmentUploading AttachmentStatus = "uploading"
	AttachmentReady     AttachmentStatus = "ready"
	AttachmentError     AttachmentStatus = "error"
)

// StagedAttachment is a file or image queued for the next turn. It is
// owned exclusively by the controller until the turn is sent, then
// detached and referenced by id in the outgoing message. Upload storage
// itself is an external collaborator.
type StagedAttachment struct {
	ID     string
	Name   string
	Status AttachmentStatus
}

// StageAttachment queues an attachment for the next turn in the
// uploading state and returns its id.
func (c *Controller) StageAttachment(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	att := &StagedAttachment{
		ID:     uuid.NewString(),
		Name:   name,
		Status: AttachmentUploading,
	}
	c.attachments = append(c.attachments, att)
	return att.ID
}

// SetAttachmentStatus records the outcome of an upload. Unknown ids are
// ignored (the attachment may already have been detached by Send).
func (c *Controller) SetAttachmentStatus(id string, status AttachmentStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, att := range c.attachments {
		if att.ID == id {
			att.Status = status
			return
		}
	}
}

// Attachments returns a snapshot of the staging area.
func (c *Controller) Attachments() []StagedAttachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]StagedAttachment, len(c.attachments))
	for i, att := range c.attachments {
		out[i] = *att
	}
	return out
}

// readyAttachmentIDsLocked returns the ids of the ready attachments for
// the outgoing request without touching the staging area. The caller
// clears the staging area once the turn is actually issued; uploads that
// failed or never finished are dropped with the rest of it then.
func (c *Controller) readyAttachmentIDsLocked() []string {
	var ids []string
	for _, att := range c.attachments {
		if att.Status == AttachmentReady {
			ids = append(ids, att.ID)
		}
	}
	return ids
}
