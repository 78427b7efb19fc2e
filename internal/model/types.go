package model

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

type SenderType string

const (
	SenderClient     SenderType = "client"
	SenderTechnician SenderType = "technician"
)

func ValidSenderType(s SenderType) bool {
	return s == SenderClient || s == SenderTechnician
}

// Permissions are the capabilities a client has granted the technician.
type Permissions struct {
	Screen   bool `json:"screen"`
	Keyboard bool `json:"keyboard"`
	Mouse    bool `json:"mouse"`
}

// PermissionPatch is a partial update; nil fields keep their current value.
type PermissionPatch struct {
	Screen   *bool `json:"screen"`
	Keyboard *bool `json:"keyboard"`
	Mouse    *bool `json:"mouse"`
}

func (p Permissions) Merge(patch PermissionPatch) Permissions {
	if patch.Screen != nil {
		p.Screen = *patch.Screen
	}
	if patch.Keyboard != nil {
		p.Keyboard = *patch.Keyboard
	}
	if patch.Mouse != nil {
		p.Mouse = *patch.Mouse
	}
	return p
}

// Connection is the durable record of one support session. Timestamps are
// unix milliseconds; zero means unset for StartTime and EndTime.
type Connection struct {
	ID          string
	AccessCode  string
	Status      Status
	Technician  string
	Permissions Permissions
	StartTime   int64
	EndTime     int64
	Description string
	CreatedAt   int64
	ExpiresAt   int64
}

func (c Connection) ExpiredAt(nowMillis int64) bool {
	return c.ExpiresAt <= nowMillis
}

// Message belongs to one Connection by its durable ID; AccessCode is kept for
// the public surface, which addresses chat logs by code.
type Message struct {
	ID           string
	ConnectionID string
	AccessCode   string
	SenderType   SenderType
	Content      string
	CreatedAt    int64
}
