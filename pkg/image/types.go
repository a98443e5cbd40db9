package image

// Request asks the backend to render an image.
type Request struct {
	Model    string `json:"model"`
	Query    string `json:"query"`
	IsGlobal bool   `json:"is_global,omitempty"`
}

// Image is a previously generated image.
type Image struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	IsGlobal  bool   `json:"is_global"`
	Query     string `json:"query"`
	Model     string `json:"model"`
	Size      string `json:"size"`
	ImageURL  string `json:"image_url"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Query selects a page of images.
type Query struct {
	Page  int
	Limit int
	Term  string
}
