package model

import "time"

// Roles carried in the JWT "role" claim.
const (
	RoleTourist  = "TOURIST"
	RoleAgency   = "AGENCY"
	RoleLandlord = "LANDLORD"
	RoleAdmin    = "ADMIN"
)

// User is any authenticated principal: tourists arriving via the chat-bot
// front-end, agency staff, landlords and platform admins.  Apartment
// attribution fields support the booking-time referral path: they are
// stamped when the user scans an apartment QR and consulted (with a
// staleness window) when a booking is created.
//
// Fields:
//
//	ID             – primary key identifier.
//	Email          – unique login identifier.
//	PasswordHash   – bcrypt hash of the password.
//	Role           – one of the Role* constants.
//	First          – first name (optional).
//	Last           – last name (optional).
//	Phone          – contact phone (optional).
//	ApartmentID    – apartment the user last scanned (nullable).
//	ApartmentSetAt – when the apartment scan happened (nullable).
//	CreatedAt      – creation timestamp.
type User struct {
	ID             uint64     // users.id
	Email          string     // users.email
	PasswordHash   string     // users.password_hash
	Role           string     // users.role
	First          string     // users.first
	Last           string     // users.last
	Phone          string     // users.phone
	ApartmentID    *uint64    // users.apartment_id (nullable)
	ApartmentSetAt *time.Time // users.apartment_set_at (nullable)
	CreatedAt      time.Time  // users.created_at
}

// Agency is a tenant that owns tours and decides bookings.
type Agency struct {
	ID        uint64    // agencies.id
	UserID    uint64    // agencies.user_id
	Name      string    // agencies.name
	CreatedAt time.Time // agencies.created_at
}
