package model

import "time"

// Role names stored in users.role.
const (
    RoleUser  = "user"
    RoleAdmin = "admin"
)

// User represents an application user record as stored in the
// `users` table. Handlers define their own response types with JSON
// tags; this struct is used by the repository and identity layers.
//
// Fields:
//  ID                    – primary key identifier of the user.
//  Email                 – unique, lower-cased email address.
//  PasswordHash          – bcrypt hashed password.
//  Role                  – RoleUser or RoleAdmin.
//  Verified              – whether the email address has been confirmed.
//  VerificationTokenHash – SHA‑256 hex of the pending verification token (empty once verified).
//  CreatedAt             – timestamp of creation.
//  UpdatedAt             – timestamp of last update.
type User struct {
    ID                    uint64    // users.id
    Email                 string    // users.email
    PasswordHash          string    // users.password_hash
    Role                  string    // users.role
    Verified              bool      // users.verified
    VerificationTokenHash string    // users.verification_token_hash
    CreatedAt             time.Time // users.created_at
    UpdatedAt             time.Time // users.updated_at
}
