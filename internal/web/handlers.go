package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sabata/salesd/internal/sales"
)

// maxFormFieldSize bounds non-file multipart fields.
const maxFormFieldSize = 4 << 10

// handleHealthz reports liveness plus store reachability.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !s.service.Ping(r.Context()) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{"status": "degraded", "db": "unreachable"})
		return
	}
	writeJSON(w, map[string]string{"status": "ok", "db": "ok"})
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"message": "sales service is running"})
}

func (s *Server) handleDBStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]bool{"connected": s.service.Ping(r.Context())})
}

func (s *Server) handleDBVersion(w http.ResponseWriter, r *http.Request) {
	version, err := s.service.Version(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"version": version})
}

// handleListSales returns one page of records as a relay-style connection.
func (s *Server) handleListSales(w http.ResponseWriter, r *http.Request) {
	params, err := parsePageParams(r.URL.Query())
	if err != nil {
		s.respondBadRequest(w, r, err.Error())
		return
	}

	conn, err := s.service.Page(r.Context(), params)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, conn)
}

// handleGetSale returns the record keyed by the path order id, or a JSON
// null when no such record exists. Absence is not an error.
func (s *Server) handleGetSale(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		s.respondBadRequest(w, r, "order id must be an integer")
		return
	}

	rec, err := s.service.GetByID(r.Context(), orderID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, rec)
}

func (s *Server) handleSalesStats(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		s.respondBadRequest(w, r, err.Error())
		return
	}

	stats, err := s.service.GetStats(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, stats)
}

// handleImport streams a multipart CSV upload into the store.
//
// The upload is processed without buffering the file, so the form fields
// (source, update_on_conflict) must precede the file part. The request body
// is capped at the configured maximum file size.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)

	mr, err := r.MultipartReader()
	if err != nil {
		s.respondBadRequest(w, r, "expected multipart form upload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Import.Timeout)
	defer cancel()

	opts := sales.ImportOptions{Source: "api"}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.respondError(w, r, err)
			return
		}

		switch part.FormName() {
		case "source":
			val, err := readFormField(part)
			if err != nil {
				s.respondError(w, r, err)
				return
			}
			if val != "" {
				opts.Source = val
			}
		case "update_on_conflict":
			val, err := readFormField(part)
			if err != nil {
				s.respondError(w, r, err)
				return
			}
			opts.UpdateOnConflict, err = strconv.ParseBool(val)
			if err != nil {
				s.respondBadRequest(w, r, "update_on_conflict must be a boolean")
				return
			}
		case "file":
			opts.FileName = part.FileName()
			res, err := s.service.Import(ctx, part, opts)
			part.Close()
			if err != nil {
				s.respondError(w, r, err)
				return
			}
			writeJSON(w, res)
			return
		}
		part.Close()
	}

	s.respondBadRequest(w, r, "missing file part")
}

// handleImportPreview validates a multipart CSV upload without writing
// anything, returning the counts an import would produce.
func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)

	mr, err := r.MultipartReader()
	if err != nil {
		s.respondBadRequest(w, r, "expected multipart form upload")
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		res, err := sales.Preview(part, 0)
		part.Close()
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, res)
		return
	}

	s.respondBadRequest(w, r, "missing file part")
}

func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.respondBadRequest(w, r, "limit must be an integer")
			return
		}
		limit = n
	}

	entries, err := s.service.ListHistory(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, entries)
}

// readFormField reads a small non-file multipart field.
func readFormField(part io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFormFieldSize))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// parsePageParams extracts pagination parameters from the query string.
func parsePageParams(q url.Values) (sales.PageParams, error) {
	params := sales.PageParams{
		First: 50,
		After: q.Get("after"),
	}

	if raw := q.Get("first"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return sales.PageParams{}, errors.New("first must be an integer")
		}
		params.First = n
	}

	params.Direction = sales.ParseDirection(q.Get("direction"))

	filter, err := parseFilter(q)
	if err != nil {
		return sales.PageParams{}, err
	}
	params.Filter = filter

	return params, nil
}

// parseFilter extracts record filter parameters from the query string.
// Returns nil when no filter parameter is present.
func parseFilter(q url.Values) (*sales.Filter, error) {
	f := &sales.Filter{
		Region:        q.Get("region"),
		Country:       q.Get("country"),
		ItemType:      q.Get("item_type"),
		SalesChannel:  q.Get("sales_channel"),
		OrderPriority: q.Get("order_priority"),
		Q:             q.Get("q"),
	}
	empty := *f == (sales.Filter{})

	if raw := q.Get("order_date_from"); raw != "" {
		d, err := sales.ParseDate(raw)
		if err != nil {
			return nil, errors.New("order_date_from must be YYYY-MM-DD")
		}
		f.OrderDateFrom = &d
		empty = false
	}
	if raw := q.Get("order_date_to"); raw != "" {
		d, err := sales.ParseDate(raw)
		if err != nil {
			return nil, errors.New("order_date_to must be YYYY-MM-DD")
		}
		f.OrderDateTo = &d
		empty = false
	}
	if raw := q.Get("min_profit"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.New("min_profit must be a number")
		}
		f.MinProfit = &v
		empty = false
	}
	if raw := q.Get("max_profit"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.New("max_profit must be a number")
		}
		f.MaxProfit = &v
		empty = false
	}

	if empty {
		return nil, nil
	}
	return f, nil
}
