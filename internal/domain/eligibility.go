package domain

type Role string

const (
	RoleIndividual Role = "individual"
	RoleCompany    Role = "company"
	RoleDealer     Role = "dealer"
	RoleAdmin      Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleIndividual, RoleCompany, RoleDealer, RoleAdmin:
		return true
	default:
		return false
	}
}

// Principal is the authenticated caller handed to the engine by the identity layer.
type Principal struct {
	UserID string
	Role   Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// UserType restricts which roles may bid on (and see) an auction.
type UserType string

const (
	UserTypeAll            UserType = "all"
	UserTypeDealersOnly    UserType = "dealers-only"
	UserTypeIndividualOnly UserType = "individual-only"
)

var eligibility = map[UserType]map[Role]bool{
	UserTypeAll: {
		RoleIndividual: true,
		RoleCompany:    true,
		RoleDealer:     true,
		RoleAdmin:      true,
	},
	UserTypeDealersOnly: {
		RoleDealer: true,
	},
	UserTypeIndividualOnly: {
		RoleIndividual: true,
		RoleCompany:    true,
		RoleAdmin:      true,
	},
}

func (u UserType) IsValid() bool {
	_, ok := eligibility[u]
	return ok
}

// Complement returns the restriction a parallel partner gets. Open auctions
// have no complement.
func (u UserType) Complement() (UserType, bool) {
	switch u {
	case UserTypeDealersOnly:
		return UserTypeIndividualOnly, true
	case UserTypeIndividualOnly:
		return UserTypeDealersOnly, true
	default:
		return "", false
	}
}

// FeeUserType is the fee-schedule audience an auction with this restriction
// is priced for.
func (u UserType) FeeUserType() string {
	switch u {
	case UserTypeDealersOnly:
		return string(RoleDealer)
	case UserTypeIndividualOnly:
		return string(RoleIndividual)
	default:
		return FeeUserTypeAll
	}
}

// IsEligible reports whether role may bid on an auction restricted to restriction.
func IsEligible(role Role, restriction UserType) bool {
	return eligibility[restriction][role]
}

// EligibleUserTypes lists the restrictions under which role may bid.
func EligibleUserTypes(role Role) []UserType {
	var out []UserType
	for _, ut := range []UserType{UserTypeAll, UserTypeDealersOnly, UserTypeIndividualOnly} {
		if IsEligible(role, ut) {
			out = append(out, ut)
		}
	}
	return out
}

const FeeUserTypeAll = "all"
