package crm

import "time"

// Customer is a saved dialing contact. The directory exists so operators can
// dispatch to known contacts without re-pasting numbers.
type Customer struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Name    string `json:"name,omitempty" db:"name"`
	Phone   string `json:"phone" db:"phone"`
	Email   string `json:"email,omitempty" db:"email"`
	Company string `json:"company,omitempty" db:"company"`
}
