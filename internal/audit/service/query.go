package service

import (
	"net/url"
	"strconv"
	"time"

	"supplytrail/internal/audit/models"
	"supplytrail/internal/audit/store"
	"supplytrail/internal/objects"
	dErrors "supplytrail/pkg/domain-errors"
)

const (
	defaultPerPage = 5
	maxPerPage     = 100
)

// ParseListQuery turns raw list parameters into a store filter and page
// request. All parameter-shape errors carry CodeBadRequest; referential
// checks (does the filtered object exist, is the page in range) happen later
// in Service.List, where the store can be consulted.
func ParseListQuery(params url.Values) (store.ListFilter, store.Page, error) {
	var filter store.ListFilter

	if raw := params.Get("audit-type"); raw != "" {
		auditType, err := models.ParseAuditType(raw)
		if err != nil {
			return store.ListFilter{}, store.Page{}, err
		}
		filter.Type = auditType
	}

	if raw := params.Get("audit-date"); raw != "" {
		day, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			return store.ListFilter{}, store.Page{}, dErrors.New(dErrors.CodeBadRequest, "invalid audit date supplied")
		}
		filter.Day = &day
	}

	ack, err := models.ParseAckFilter(params.Get("acknowledged"))
	if err != nil {
		return store.ListFilter{}, store.Page{}, err
	}
	filter.Ack = ack

	rawKind := params.Get("object-type")
	rawID := params.Get("object-id")
	if rawID != "" && rawKind == "" {
		return store.ListFilter{}, store.Page{}, dErrors.New(dErrors.CodeBadRequest, "object ID cannot be provided without an object type")
	}
	if rawKind != "" {
		kind, err := objects.ParseKind(rawKind)
		if err != nil {
			return store.ListFilter{}, store.Page{}, err
		}
		if rawID == "" {
			return store.ListFilter{}, store.Page{}, dErrors.New(dErrors.CodeBadRequest, "object type cannot be provided without an object ID")
		}
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil || id <= 0 {
			return store.ListFilter{}, store.Page{}, dErrors.New(dErrors.CodeBadRequest, "invalid object ID supplied")
		}
		filter.ObjectKind = kind
		filter.ObjectID = &id
	}

	filter.LatestFirst = params.Get("latest_first") == "true"
	filter.EarliestForEachObject = params.Get("earliest_for_each_object") == "true"

	page, err := parsePage(params)
	if err != nil {
		return store.ListFilter{}, store.Page{}, err
	}
	return filter, page, nil
}

func parsePage(params url.Values) (store.Page, error) {
	page := store.Page{Number: 1, Size: defaultPerPage}

	// A parameter that is present but empty is malformed, not defaulted.
	if raw, ok := params["page"]; ok {
		number, err := strconv.Atoi(firstOf(raw))
		if err != nil || number < 1 {
			return store.Page{}, dErrors.New(dErrors.CodeBadRequest, "invalid page argument")
		}
		page.Number = number
	}
	if raw, ok := params["per_page"]; ok {
		size, err := strconv.Atoi(firstOf(raw))
		if err != nil || size < 1 || size > maxPerPage {
			return store.Page{}, dErrors.New(dErrors.CodeBadRequest, "invalid per_page argument")
		}
		page.Size = size
	}
	return page, nil
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
