package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"wabot/internal/domain"
)

// reminderOffsets are how many minutes before the due time a coursework
// reminder fires. The zero offset fires at the due time itself.
var reminderOffsets = []int{60, 30, 10, 0}

// driveIDPattern extracts the file id from a Google Drive link.
var driveIDPattern = regexp.MustCompile(`[-\w]{25,}`)

var driveExportURL = "https://drive.google.com/uc?export=download&id="

const maxDriveFileSize = 50 << 20

// classroomDoc mirrors the Google Classroom webhook payload.
type classroomDoc struct {
	Content struct {
		Type   string `json:"type"` // material | coursework
		Course struct {
			DescriptionHeading string `json:"descriptionHeading"`
		} `json:"course"`
		Activity classroomActivity `json:"activity"`
	} `json:"content"`
}

type classroomActivity struct {
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	AlternateLink string              `json:"alternateLink"`
	WorkType      string              `json:"workType"`
	MaxPoints     float64             `json:"maxPoints"`
	DueDate       *classroomDate      `json:"dueDate"`
	DueTime       *classroomTime      `json:"dueTime"`
	Materials     []classroomMaterial `json:"materials"`
}

type classroomDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type classroomTime struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

type classroomMaterial struct {
	DriveFile *struct {
		DriveFile struct {
			Title         string `json:"title"`
			Description   string `json:"description"`
			AlternateLink string `json:"alternateLink"`
		} `json:"driveFile"`
	} `json:"driveFile"`
	YouTubeVideo *struct {
		Title         string `json:"title"`
		AlternateLink string `json:"alternateLink"`
	} `json:"youtubeVideo"`
	Link *struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	} `json:"link"`
}

type classroom struct {
	gw           domain.Gateway
	reminders    domain.ReminderStore
	zone         *time.Location
	classroomGrp string
	client       *http.Client
	logger       *slog.Logger
}

// NewClassroom announces Google Classroom activity in the class group:
// one notification card per document, attached materials after it, and
// scheduled reminders leading up to coursework due times. Due times
// arrive in UTC and are rendered in the audience zone.
func NewClassroom(gw domain.Gateway, reminders domain.ReminderStore, zone *time.Location, classroomGroup string, logger *slog.Logger) *Plugin {
	if zone == nil {
		zone = time.UTC
	}
	c := &classroom{
		gw:           gw,
		reminders:    reminders,
		zone:         zone,
		classroomGrp: classroomGroup,
		client:       &http.Client{Timeout: 60 * time.Second},
		logger:       logger,
	}
	return &Plugin{
		Name:         "classroom",
		Tier:         domain.TierStandard,
		Internal:     true,
		Description:  "Announce Google Classroom activity.",
		DocumentType: domain.DocTypeClassroom,
		Preprocess:   c.preprocess,
		Handle:       c.handle,
	}
}

// preprocess tags plain chat happening in the class group so the
// resolver can mention the setting in its prompt.
func (c *classroom) preprocess(ctx context.Context, msg *domain.Message) {
	if c.classroomGrp != "" && msg.Group == c.classroomGrp && msg.DocumentType == "" {
		msg.SetTag("classroom", "1")
	}
}

func (c *classroom) handle(ctx context.Context, msg *domain.Message) (Outcome, error) {
	var doc classroomDoc
	if err := json.Unmarshal(msg.Document, &doc); err != nil {
		return OutcomeHandled, fmt.Errorf("parse classroom document: %w", err)
	}

	dest := msg.Destination()
	act := doc.Content.Activity

	var text string
	switch doc.Content.Type {
	case "material":
		text = formatCard(
			"New Material for "+doc.Content.Course.DescriptionHeading,
			[]cardItem{
				{"📝 Title", act.Title},
				{"📄 Description", act.Description},
				{"🔗 Link", act.AlternateLink},
			},
			"",
		)
	case "coursework":
		text = formatCard(
			fmt.Sprintf("New %s created for %s", titleCase(act.WorkType), doc.Content.Course.DescriptionHeading),
			[]cardItem{
				{"📝 Title", act.Title},
				{"📄 Description", act.Description},
				{"⏰ Due", c.renderDue(act.DueDate, act.DueTime)},
				{"🏆 Points", renderPoints(act.MaxPoints)},
				{"🔗 Link", act.AlternateLink},
			},
			"Good Luck ✌️",
		)
	default:
		c.logger.Warn("unknown classroom document type", "type", doc.Content.Type)
		return OutcomeHandled, nil
	}

	if err := c.gw.SendMessage(ctx, dest, text); err != nil {
		return OutcomeHandled, fmt.Errorf("send classroom notification: %w", err)
	}

	if doc.Content.Type == "coursework" {
		c.scheduleReminders(ctx, dest, act)
	}
	c.sendMaterials(ctx, dest, act)

	return OutcomeHandled, nil
}

// renderDue shifts the UTC due instant into the audience zone and
// renders it as Y/M/D HH:MM. Coursework without a due time falls back
// to end of day, matching the reminder schedule.
func (c *classroom) renderDue(date *classroomDate, tm *classroomTime) string {
	due, ok := dueInstant(date, tm)
	if !ok {
		return ""
	}
	local := due.In(c.zone)
	return fmt.Sprintf("%d/%d/%d %02d:%02d", local.Year(), int(local.Month()), local.Day(), local.Hour(), local.Minute())
}

// dueInstant builds the UTC due time. Absent dates mean no deadline;
// absent times default to 23:59.
func dueInstant(date *classroomDate, tm *classroomTime) (time.Time, bool) {
	if date == nil {
		return time.Time{}, false
	}
	hours, minutes := 23, 59
	if tm != nil {
		hours, minutes = tm.Hours, tm.Minutes
	}
	return time.Date(date.Year, time.Month(date.Month), date.Day, hours, minutes, 0, 0, time.UTC), true
}

func (c *classroom) scheduleReminders(ctx context.Context, dest string, act classroomActivity) {
	due, ok := dueInstant(act.DueDate, act.DueTime)
	if !ok {
		return
	}
	ref := act.AlternateLink
	if ref == "" {
		ref = act.Title
	}
	for _, offset := range reminderOffsets {
		r := domain.Reminder{
			RefID:    ref,
			SendTo:   dest,
			Title:    act.Title,
			DueAt:    due,
			RemindAt: due.Add(-time.Duration(offset) * time.Minute),
		}
		if err := c.reminders.AddReminder(ctx, r); err != nil {
			c.logger.Error("cannot schedule reminder", "title", act.Title, "offset_min", offset, "err", err)
		}
	}
}

// sendMaterials announces each attached material. Drive files are
// mirrored through the gateway when the public download works; all
// failures degrade to a link-only card.
func (c *classroom) sendMaterials(ctx context.Context, dest string, act classroomActivity) {
	total := len(act.Materials)
	for i, m := range act.Materials {
		header := fmt.Sprintf("Material %d of %d for %s", i+1, total, act.Title)

		switch {
		case m.DriveFile != nil:
			df := m.DriveFile.DriveFile
			caption := formatCard(header, []cardItem{
				{"📝 Title", df.Title},
				{"📄 Description", df.Description},
				{"🔗 Link", df.AlternateLink},
			}, "")

			path, err := c.fetchDriveFile(ctx, df.AlternateLink)
			if err != nil {
				c.logger.Warn("drive download failed, sending link only", "title", df.Title, "err", err)
				c.send(ctx, dest, caption)
				continue
			}
			if err := c.gw.SendFile(ctx, dest, path, caption); err != nil {
				c.logger.Error("cannot send drive file", "title", df.Title, "err", err)
			}
			os.Remove(path)

		case m.YouTubeVideo != nil:
			c.send(ctx, dest, formatCard(header, []cardItem{
				{"📝 Title", m.YouTubeVideo.Title},
				{"🔗 YouTube Link", m.YouTubeVideo.AlternateLink},
			}, ""))

		case m.Link != nil:
			c.send(ctx, dest, formatCard(header, []cardItem{
				{"📝 Title", m.Link.Title},
				{"🔗 Link", m.Link.URL},
			}, ""))
		}
	}
}

func (c *classroom) send(ctx context.Context, dest, text string) {
	if err := c.gw.SendMessage(ctx, dest, text); err != nil {
		c.logger.Error("cannot send material card", "err", err)
	}
}

// fetchDriveFile downloads a publicly shared Drive file to a temp path.
// The caller removes the file after sending.
func (c *classroom) fetchDriveFile(ctx context.Context, link string) (string, error) {
	id := driveIDPattern.FindString(link)
	if id == "" {
		return "", fmt.Errorf("no file id in link %q", link)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", driveExportURL+id, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("drive returned %d", resp.StatusCode)
	}

	f, err := os.CreateTemp("", "wabot-drive-*")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	if _, err := io.Copy(f, io.LimitReader(resp.Body, maxDriveFileSize)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// titleCase turns classroom work types like SHORT_ANSWER_QUESTION into
// Short Answer Question.
func titleCase(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '_' || r == ' '
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func renderPoints(points float64) string {
	if points == 0 {
		return ""
	}
	return fmt.Sprintf("%g", points)
}
