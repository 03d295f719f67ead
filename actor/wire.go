package actor

import "github.com/eringen/fieldjournal/model"

// RPC method names, as exposed under /rpc/{method}.
const (
	MethodGetAllBlogPosts        = "getAllBlogPosts"
	MethodGetBlogPost            = "getBlogPost"
	MethodGetBlogPostsByCategory = "getBlogPostsByCategory"
	MethodCreateBlogPost         = "createBlogPost"
	MethodUpdateBlogPost         = "updateBlogPost"
	MethodDeleteBlogPost         = "deleteBlogPost"

	MethodGetAllPortfolioItems = "getAllPortfolioItems"
	MethodGetPortfolioItem     = "getPortfolioItem"
	MethodCreatePortfolioItem  = "createPortfolioItem"
	MethodUpdatePortfolioItem  = "updatePortfolioItem"
	MethodDeletePortfolioItem  = "deletePortfolioItem"

	MethodGetCallerUserProfile  = "getCallerUserProfile"
	MethodSaveCallerUserProfile = "saveCallerUserProfile"
	MethodGetUserProfile        = "getUserProfile"

	MethodGetCallerUserRole    = "getCallerUserRole"
	MethodIsCallerAdmin        = "isCallerAdmin"
	MethodAssignCallerUserRole = "assignCallerUserRole"

	MethodGetBlogStats = "getBlogStats"
)

// Paths served by the backend.
const (
	PathRPC    = "/rpc/"
	PathHealth = "/healthz"
	PathLogin  = "/identity/login"
	PathLogout = "/identity/logout"
)

// NoArgs is sent for methods without arguments.
type NoArgs struct{}

type IDArgs struct {
	ID model.ID `json:"id,string"`
}

type CategoryArgs struct {
	Category model.Category `json:"category"`
}

// PostArgs carries create and update arguments; ID is ignored on create.
type PostArgs struct {
	ID               model.ID       `json:"id,string,omitempty"`
	Title            string         `json:"title"`
	Body             string         `json:"body"`
	Category         model.Category `json:"category"`
	FeaturedImageURL *string        `json:"featuredImageUrl"`
}

// PortfolioArgs carries create and update arguments; ID is ignored on create.
type PortfolioArgs struct {
	ID          model.ID `json:"id,string,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ImageURLs   []string `json:"imageUrls"`
	Location    string   `json:"location"`
}

type ProfileArgs struct {
	Profile model.UserProfile `json:"profile"`
}

type PrincipalArgs struct {
	Principal model.Principal `json:"principal"`
}

type AssignRoleArgs struct {
	Principal model.Principal `json:"principal"`
	Role      model.Role      `json:"role"`
}

// Envelope wraps every successful RPC result.
type Envelope[T any] struct {
	OK T `json:"ok"`
}

// ErrorBody is the error envelope returned with non-2xx statuses.
type ErrorBody struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// LoginRequest is posted to PathLogin.
type LoginRequest struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

// LoginResponse is returned by PathLogin.
type LoginResponse struct {
	Principal model.Principal `json:"principal"`
	Token     string          `json:"token"`
}

// PostInput converts create/update arguments to the model input.
func (a PostArgs) PostInput() model.PostInput {
	return model.PostInput{Title: a.Title, Body: a.Body, Category: a.Category, FeaturedImageURL: a.FeaturedImageURL}
}

// PortfolioInput converts create/update arguments to the model input.
func (a PortfolioArgs) PortfolioInput() model.PortfolioInput {
	return model.PortfolioInput{Title: a.Title, Description: a.Description, ImageURLs: a.ImageURLs, Location: a.Location}
}

func postArgs(id model.ID, in model.PostInput) PostArgs {
	return PostArgs{ID: id, Title: in.Title, Body: in.Body, Category: in.Category, FeaturedImageURL: in.FeaturedImageURL}
}

func portfolioArgs(id model.ID, in model.PortfolioInput) PortfolioArgs {
	urls := in.ImageURLs
	if urls == nil {
		urls = []string{}
	}
	return PortfolioArgs{ID: id, Title: in.Title, Description: in.Description, ImageURLs: urls, Location: in.Location}
}
