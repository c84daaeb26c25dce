package restaurants

type GalleryImage struct {
	DisplayURL   string `json:"display_url"`
	CopyURL      string `json:"copy_url"`
	Key          string `json:"key"`
	OriginalName string `json:"originalname"`
}
