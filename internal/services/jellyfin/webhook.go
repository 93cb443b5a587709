package jellyfin

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/unmonitarr/internal/models"
)

const userDataSaved = "UserDataSaved"

var (
	// ErrNotRelevant matches every payload that is well formed but carries nothing to sync
	ErrNotRelevant = errors.New("webhook event not relevant")
	// ErrMissingIdentity is returned when the item id or the user id cannot be found
	ErrMissingIdentity = errors.New("missing ItemId or UserId in webhook payload")
)

// NotRelevantError explains why a payload was ignored
type NotRelevantError struct {
	Reason string
}

func (e *NotRelevantError) Error() string {
	return e.Reason
}

// Is makes errors.Is(err, ErrNotRelevant) true
func (e *NotRelevantError) Is(target error) bool {
	return target == ErrNotRelevant
}

func notRelevant(format string, args ...interface{}) error {
	return &NotRelevantError{Reason: fmt.Sprintf(format, args...)}
}

// relevantSaveReasons are the UserDataSaved reasons that change the played flag.
// PlaybackProgress fires every few seconds during playback.
var relevantSaveReasons = map[string]bool{
	"TogglePlayed":     true,
	"PlaybackFinished": true,
}

// NormalizePayload turns a decoded webhook body into a watch event.
// Three payload shapes are understood, checked in this order:
//   - canonical: already normalized data, as produced by bulk reconciliation
//   - Send All: the Jellyfin webhook plugin posting every field at the top level
//   - legacy: templated payloads where fields live under "template" or at several keys
func NormalizePayload(payload map[string]interface{}) (*models.WatchEvent, error) {
	if allStringsEmpty(payload) {
		return nil, notRelevant("empty template, no field was substituted")
	}

	switch {
	case isCanonical(payload):
		return extractCanonical(payload)
	case hasKey(payload, "NotificationType") || hasKey(payload, "Event"):
		return extractSendAll(payload)
	default:
		return extractLegacy(payload)
	}
}

func isCanonical(payload map[string]interface{}) bool {
	for _, key := range []string{"jellyfin_id", "user_id", "event_type", "is_watched"} {
		if !hasKey(payload, key) {
			return false
		}
	}
	return true
}

func extractCanonical(payload map[string]interface{}) (*models.WatchEvent, error) {
	ev := &models.WatchEvent{
		EventType:     stringValue(payload["event_type"]),
		ItemID:        stringValue(payload["jellyfin_id"]),
		UserID:        stringValue(payload["user_id"]),
		Username:      stringValue(payload["username"]),
		Title:         stringValue(payload["item_name"]),
		MediaType:     models.ParseMediaType(stringValue(payload["item_type"])),
		SeriesID:      stringValue(payload["series_id"]),
		SeriesName:    stringValue(payload["series_name"]),
		SeasonNumber:  intValue(payload["season_number"]),
		EpisodeNumber: intValue(payload["episode_number"]),
		SeriesYear:    intValue(payload["series_year"]),
		Year:          intValue(payload["year"]),
		IDs: models.ExternalIDs{
			Tvdb: stringValue(payload["tvdb_id"]),
			Imdb: stringValue(payload["imdb_id"]),
			Tmdb: stringValue(payload["tmdb_id"]),
		},
		ReceivedAt: time.Now(),
	}
	ev.Watched, ev.WatchedKnown = boolValue(payload["is_watched"])

	if ev.ItemID == "" || ev.UserID == "" {
		return nil, ErrMissingIdentity
	}
	return ev, nil
}

func extractSendAll(payload map[string]interface{}) (*models.WatchEvent, error) {
	eventType := firstString(payload, "NotificationType", "Event")
	if eventType == "Test" {
		return nil, notRelevant("webhook test notification")
	}
	if eventType != userDataSaved {
		return nil, notRelevant("not a %s event: %s", userDataSaved, eventType)
	}

	saveReason := stringValue(payload["SaveReason"])
	if !relevantSaveReasons[saveReason] {
		return nil, notRelevant("save reason %q does not change watched status", saveReason)
	}

	ev := &models.WatchEvent{
		EventType:     eventType,
		ItemID:        stringValue(payload["ItemId"]),
		UserID:        stringValue(payload["UserId"]),
		Username:      stringValue(payload["NotificationUsername"]),
		Title:         stringValue(payload["Name"]),
		MediaType:     models.ParseMediaType(stringValue(payload["ItemType"])),
		SeriesID:      stringValue(payload["SeriesId"]),
		SeriesName:    stringValue(payload["SeriesName"]),
		SeasonNumber:  intValue(payload["SeasonNumber"]),
		EpisodeNumber: intValue(payload["EpisodeNumber"]),
		SeriesYear:    yearPrefix(stringValue(payload["SeriesPremiereDate"])),
		Year:          intValue(payload["Year"]),
		IDs:           externalIDs(payload),
		ReceivedAt:    time.Now(),
	}
	ev.Watched, ev.WatchedKnown = boolValue(payload["Played"])

	if ev.ItemID == "" || ev.UserID == "" {
		return nil, ErrMissingIdentity
	}
	return ev, nil
}

func extractLegacy(payload map[string]interface{}) (*models.WatchEvent, error) {
	eventType := firstString(payload, "template.Type", "Type", "event_type", "NotificationType")
	if eventType != userDataSaved {
		if !containsString(payload["events"], userDataSaved) {
			return nil, notRelevant("not a %s event: %s", userDataSaved, eventType)
		}
		eventType = userDataSaved
	}

	if saveReason := firstString(payload, "template.SaveReason", "SaveReason"); saveReason != "" && !relevantSaveReasons[saveReason] {
		return nil, notRelevant("save reason %q does not change watched status", saveReason)
	}

	ev := &models.WatchEvent{
		EventType:  eventType,
		ItemID:     firstString(payload, "template.ItemId", "ItemId", "Id", "Item.Id"),
		UserID:     firstString(payload, "template.UserId", "UserId", "user_id", "User.Id"),
		Username:   firstString(payload, "template.NotificationUsername", "NotificationUsername", "User.Name"),
		Title:      firstString(payload, "template.Name", "Name", "ItemName", "Item.Name"),
		MediaType:  models.ParseMediaType(firstString(payload, "template.ItemType", "ItemType", "Item.Type")),
		SeriesID:   firstString(payload, "template.SeriesId", "SeriesId", "Item.SeriesId"),
		SeriesName: firstString(payload, "template.SeriesName", "SeriesName", "Item.SeriesName"),
		ReceivedAt: time.Now(),
	}
	ev.SeasonNumber = intValue(first(payload, "template.SeasonNumber", "SeasonNumber"))
	ev.EpisodeNumber = intValue(first(payload, "template.EpisodeNumber", "EpisodeNumber"))
	ev.Year = intValue(first(payload, "template.Year", "Year", "Item.ProductionYear"))
	ev.SeriesYear = yearPrefix(firstString(payload, "template.SeriesPremiereDate", "SeriesPremiereDate"))
	ev.Watched, ev.WatchedKnown = boolValue(first(payload, "template.Played", "Played", "UserData.Played", "Item.UserData.Played"))

	ev.IDs = externalIDs(payload)
	for _, nested := range []string{"template", "Item"} {
		if sub, ok := payload[nested].(map[string]interface{}); ok {
			ev.IDs = mergeIDs(ev.IDs, externalIDs(sub))
		}
	}

	if ev.ItemID == "" || ev.UserID == "" {
		return nil, ErrMissingIdentity
	}
	return ev, nil
}

// externalIDs searches the provider id aliases of each id type, first match wins
func externalIDs(payload map[string]interface{}) models.ExternalIDs {
	find := func(lower string) string {
		upper := strings.ToUpper(lower[:1]) + lower[1:]
		return firstString(payload,
			"Provider_"+lower,
			"ProviderIds."+upper,
			"ProviderIds."+lower,
			upper+"Id",
			lower+"Id",
			lower+"_id",
		)
	}

	return models.ExternalIDs{
		Tvdb: find("tvdb"),
		Imdb: find("imdb"),
		Tmdb: find("tmdb"),
	}
}

func mergeIDs(ids, fallback models.ExternalIDs) models.ExternalIDs {
	if ids.Tvdb == "" {
		ids.Tvdb = fallback.Tvdb
	}
	if ids.Imdb == "" {
		ids.Imdb = fallback.Imdb
	}
	if ids.Tmdb == "" {
		ids.Tmdb = fallback.Tmdb
	}
	return ids
}

// Payload access helpers

func hasKey(payload map[string]interface{}, key string) bool {
	_, ok := payload[key]
	return ok
}

// lookup resolves a dotted path through nested objects
func lookup(payload map[string]interface{}, path string) (interface{}, bool) {
	current := payload
	parts := strings.Split(path, ".")
	for i, part := range parts {
		value, ok := current[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return value, true
		}
		next, ok := value.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current = next
	}
	return nil, false
}

// first returns the first present value that is neither null nor an empty string
func first(payload map[string]interface{}, paths ...string) interface{} {
	for _, path := range paths {
		value, ok := lookup(payload, path)
		if !ok || value == nil {
			continue
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return value
	}
	return nil
}

func firstString(payload map[string]interface{}, paths ...string) string {
	return stringValue(first(payload, paths...))
}

func stringValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

func intValue(value interface{}) *int {
	switch v := value.(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		return &v
	case int64:
		n := int(v)
		return &n
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

// boolValue reports the flag and whether the value was a recognizable boolean
func boolValue(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

func containsString(value interface{}, want string) bool {
	list, ok := value.([]interface{})
	if !ok {
		return false
	}
	for _, item := range list {
		if s, ok := item.(string); ok && s == want {
			return true
		}
	}
	return false
}

// allStringsEmpty reports whether no string anywhere in the payload has content.
// Jellyfin posts a template with every placeholder blank when substitution fails.
func allStringsEmpty(value interface{}) bool {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) == ""
	case map[string]interface{}:
		for _, inner := range v {
			if !allStringsEmpty(inner) {
				return false
			}
		}
	case []interface{}:
		for _, inner := range v {
			if !allStringsEmpty(inner) {
				return false
			}
		}
	}
	return true
}
