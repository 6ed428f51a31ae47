// Package dispatch pushes domain notifications onto live channel connections.
// Complaint intake fans out to every connected admin; status changes go to the
// single identity that filed the complaint.
package dispatch

import "fmt"

// ComplaintNotice is the payload of a newComplaint event sent to admins when
// a citizen files a complaint.
type ComplaintNotice struct {
	ComplaintID string `json:"complaintId"`
	UserName    string `json:"userName"`
	Title       string `json:"title"`
	Category    string `json:"category"`
}

// StatusNotice is the payload of a statusUpdate event sent to the complaint
// owner when an admin changes the complaint's status.
type StatusNotice struct {
	ComplaintID string `json:"complaintId"`
	Status      string `json:"status"`
	Title       string `json:"title"`
}

// FormatComplaintID renders a complaint sequence number as its public id,
// e.g. 42 -> "CMP000042".
func FormatComplaintID(seq int) string {
	return fmt.Sprintf("CMP%06d", seq)
}

// NewComplaintEvent builds the admin notice for a freshly filed complaint.
// complaintID may be empty; seq is then rendered as the public id.
func NewComplaintEvent(seq int, complaintID, userName, title, category string) ComplaintNotice {
	if complaintID == "" {
		complaintID = FormatComplaintID(seq)
	}
	return ComplaintNotice{
		ComplaintID: complaintID,
		UserName:    userName,
		Title:       title,
		Category:    category,
	}
}

// StatusUpdateEvent builds the owner notice for a complaint status change.
// complaintID may be empty; seq is then rendered as the public id.
func StatusUpdateEvent(seq int, complaintID, status, title string) StatusNotice {
	if complaintID == "" {
		complaintID = FormatComplaintID(seq)
	}
	return StatusNotice{
		ComplaintID: complaintID,
		Status:      status,
		Title:       title,
	}
}
