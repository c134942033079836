package editor

// Variant is the visual weight of a notification.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a user-facing toast.
type Notification struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Variant     Variant `json:"variant"`
}

func failure(description string) Notification {
	return Notification{Title: "Error", Description: description, Variant: VariantDestructive}
}

func success(description string) Notification {
	return Notification{Title: "Success", Description: description, Variant: VariantDefault}
}

var (
	NotifyCannotRemove = Notification{
		Title:       "Cannot Remove",
		Description: "You must have at least one person entry.",
		Variant:     VariantDestructive,
	}
	NotifyImageFailed    = failure("Failed to load image. Please try uploading again.")
	NotifyTemplateFailed = failure("Failed to load template. Please try again.")
	NotifySaveFailed     = failure("Failed to save template. Please try again.")
	NotifyUploadRejected = failure("Please upload an image file.")
	NotifySaved          = success("Template saved successfully!")
	NotifyDownloaded     = success("Image downloaded successfully!")
	NotifyUploaded       = success("Template uploaded successfully!")
)

// EmptyState is shown when no template image is available.
type EmptyState struct {
	Title string `json:"title"`
	Hint  string `json:"hint"`
}

var NoTemplate = EmptyState{
	Title: "No template image found.",
	Hint:  "Please upload an image first using the Upload Template tab.",
}
