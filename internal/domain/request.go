package domain

// User is the already-validated identity supplied by the claims provider.
// It is immutable for the lifetime of a session.
type User struct {
	ID               string   `json:"id"`
	Role             Role     `json:"role"`
	AssignedProjects []string `json:"assigned_projects,omitempty"`
}

// HasProject reports whether the project is assigned to the user.
func (u User) HasProject(project string) bool {
	if project == "" {
		return false
	}
	for _, p := range u.AssignedProjects {
		if p == project {
			return true
		}
	}
	return false
}

// Namespace returns the memory namespace owned by the user.
func (u User) Namespace() string {
	return "user:" + u.ID
}

// Query is a single natural-language request.
type Query struct {
	Text     string `json:"text"`
	User     User   `json:"user"`
	ThreadID string `json:"thread_id"`
}

// QueryRequest is the wire form of a query.
type QueryRequest struct {
	Query    string `json:"query"`
	ThreadID string `json:"thread_id"`
}
