package models

import "time"

// Platforms is the closed set of networks a page can belong to.
// Per-platform maps on Post are keyed by these values only.
var Platforms = []string{"facebook", "instagram", "threads", "tiktok", "x"}

func IsPlatform(name string) bool {
	for _, p := range Platforms {
		if p == name {
			return true
		}
	}
	return false
}

// Post statuses.
const (
	PostStatusDraft         = "draft"
	PostStatusScheduled     = "scheduled"
	PostStatusPublished     = "published"
	PostStatusPublishFailed = "publish_failed"
)

// Post categories.
const (
	PostCategoryPromotion    = "promotion"
	PostCategoryEvent        = "event"
	PostCategoryAnnouncement = "announcement"
)

type Page struct {
	PageID      string    `json:"pageId"`
	Platform    string    `json:"platform"`
	Name        string    `json:"name"`
	AccessToken string    `json:"-"`
	Avatar      *string   `json:"avatar,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
}

type LinkPreview struct {
	URL         *string `json:"url,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Image       *string `json:"image,omitempty"`
}

type Post struct {
	ID             string      `json:"id"`
	ExternalPostID *string     `json:"postId,omitempty"`
	PageID         string      `json:"pageId"`
	Content        *string     `json:"content,omitempty"`
	Status         string      `json:"status"`
	Category       *string     `json:"category,omitempty"`
	ScheduledTime  *time.Time  `json:"scheduledTime,omitempty"`
	EndTime        *time.Time  `json:"endTime,omitempty"`
	MediaURL       *string     `json:"mediaUrl,omitempty"`
	MediaType      *string     `json:"mediaType,omitempty"` // image or video
	Link           LinkPreview `json:"link"`

	// Per-platform overrides, keyed by the fixed platform set.
	PlatformContent map[string]string `json:"platformContent,omitempty"`
	PlatformEnabled map[string]bool   `json:"platformEnabled,omitempty"`

	LastPublishError *string    `json:"lastPublishError,omitempty"`
	PublishedAt      *time.Time `json:"publishedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Task statuses and priorities (shared by marketing and operation tasks).
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusReview     = "review"
	TaskStatusDone       = "done"
)

const (
	TaskPriorityLow    = "low"
	TaskPriorityNormal = "normal"
	TaskPriorityHigh   = "high"
)

// Closed category sets for the two task boards.
var (
	MarketingCategories = []string{"campaign", "content", "design", "report"}
	OperationCategories = []string{"procurement", "logistics", "staffing", "maintenance"}
)

type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Content     *string   `json:"content,omitempty"`
	Status      string    `json:"status"`
	Category    string    `json:"category"`
	Priority    string    `json:"priority"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	CreatedBy   *string   `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type PostAnalytics struct {
	PostID        string    `json:"postId"`
	Likes         int64     `json:"likes"`
	Comments      int64     `json:"comments"`
	Shares        int64     `json:"shares"`
	Views         int64     `json:"views"`
	Reach         int64     `json:"reach"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

type PageAnalytics struct {
	PageID        string    `json:"pageId"`
	Likes         int64     `json:"likes"`
	Comments      int64     `json:"comments"`
	Shares        int64     `json:"shares"`
	Views         int64     `json:"views"`
	Reach         int64     `json:"reach"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

type OnelinkField struct {
	ID           string    `json:"id"`
	Platform     string    `json:"platform"`
	CampaignCode string    `json:"campaignCode"`
	MaterialID   string    `json:"materialId"`
	AdSet        *string   `json:"adSet,omitempty"`
	AdName       *string   `json:"adName,omitempty"`
	Audience     *string   `json:"audience,omitempty"`
	CreativeSize *string   `json:"creativeSize,omitempty"`
	Placement    *string   `json:"placement,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Vendor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Contact   *string   `json:"contact,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PlatformConnection is the stored auth state for one network.
type PlatformConnection struct {
	Platform    string     `json:"platform"`
	AccessToken string     `json:"-"`
	AccountName *string    `json:"accountName,omitempty"`
	DevMode     bool       `json:"devMode"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	ConnectedAt time.Time  `json:"connectedAt"`
}
