package core

// User types carried in auth claims.
const (
	UserTypeSchool = "school"
	UserTypeParent = "parent"
)

// AuthContext identifies the authenticated caller of a core operation.
// It is constructed once per request by the API authentication middleware;
// core services never read ambient session state.
type AuthContext struct {
	SchoolID string
	Email    string
	UserType string
}

func (a AuthContext) IsSchool() bool {
	return a.UserType == UserTypeSchool && a.SchoolID != ""
}
