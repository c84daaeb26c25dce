package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/jrsteele09/myoutlet-admin/httpclient"
	"github.com/jrsteele09/myoutlet-admin/internal/errors"
	"github.com/jrsteele09/myoutlet-admin/restaurants"
	"github.com/jrsteele09/myoutlet-admin/session"
)

// API is the authenticated backend API of one session.
type API struct {
	client *httpclient.Client
}

func NewAPI(client *httpclient.Client) *API {
	return &API{client: client}
}

// StoreByOwner returns the stores of the signed-in owner.
func (a *API) StoreByOwner(ctx context.Context) (session.Data, error) {
	var raw json.RawMessage
	if err := a.client.DoJSON(ctx, http.MethodGet, "/store/by-owner", nil, &raw); err != nil {
		return session.NoSession, errors.Wrapf(err, "[API StoreByOwner]")
	}
	data, err := session.FromPayload(raw)
	if err != nil {
		return session.NoSession, errors.Wrapf(err, "[API StoreByOwner]")
	}
	return data, nil
}

// SearchStores finds stores by name, for picking a parent store.
func (a *API) SearchStores(ctx context.Context, query string) ([]restaurants.Store, error) {
	var raw json.RawMessage
	if err := a.client.DoJSON(ctx, http.MethodGet, "/store/search?q="+url.QueryEscape(query), nil, &raw); err != nil {
		return nil, errors.Wrapf(err, "[API SearchStores]")
	}
	data, err := session.FromPayload(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "[API SearchStores]")
	}
	return data.Stores(), nil
}

func (a *API) CreateStore(ctx context.Context, in restaurants.CreateStoreRequest) (restaurants.Store, error) {
	var raw json.RawMessage
	if err := a.client.DoJSON(ctx, http.MethodPost, "/store", in, &raw); err != nil {
		return restaurants.Store{}, errors.Wrapf(err, "[API CreateStore]")
	}
	data, err := session.FromPayload(raw)
	if err != nil {
		return restaurants.Store{}, errors.Wrapf(err, "[API CreateStore]")
	}
	store, _ := data.Primary()
	return store, nil
}

func (a *API) ListTables(ctx context.Context, storeID string) ([]restaurants.Table, error) {
	var tables []restaurants.Table
	if err := a.client.DoJSON(ctx, http.MethodGet, "/tables/"+url.PathEscape(storeID), nil, &tables); err != nil {
		return nil, errors.Wrapf(err, "[API ListTables]")
	}
	return tables, nil
}

func (a *API) AddTable(ctx context.Context, storeID string, in restaurants.TableInput) (restaurants.Table, error) {
	if err := in.Validate(); err != nil {
		return restaurants.Table{}, err
	}
	var table restaurants.Table
	if err := a.client.DoJSON(ctx, http.MethodPost, "/tables/"+url.PathEscape(storeID), in, &table); err != nil {
		return restaurants.Table{}, errors.Wrapf(err, "[API AddTable]")
	}
	return table, nil
}

func (a *API) UpdateTable(ctx context.Context, tableID string, in restaurants.TableInput) (restaurants.Table, error) {
	if err := in.Validate(); err != nil {
		return restaurants.Table{}, err
	}
	var table restaurants.Table
	if err := a.client.DoJSON(ctx, http.MethodPatch, "/tables/"+url.PathEscape(tableID), in, &table); err != nil {
		return restaurants.Table{}, errors.Wrapf(err, "[API UpdateTable]")
	}
	return table, nil
}

func (a *API) DeleteTable(ctx context.Context, tableID string) error {
	return errors.Wrapf(a.client.DoJSON(ctx, http.MethodDelete, "/tables/"+url.PathEscape(tableID), nil, nil), "[API DeleteTable]")
}

func (a *API) ListGallery(ctx context.Context, storeID string) ([]restaurants.GalleryImage, error) {
	var images []restaurants.GalleryImage
	if err := a.client.DoJSON(ctx, http.MethodGet, "/gallery/list/"+url.PathEscape(storeID), nil, &images); err != nil {
		return nil, errors.Wrapf(err, "[API ListGallery]")
	}
	return images, nil
}

// Upload is one file of a gallery upload.
type Upload struct {
	Filename string
	Content  io.Reader
}

// UploadGallery sends files as one multipart request. The body is buffered so it can be replayed
// after a token refresh.
func (a *API) UploadGallery(ctx context.Context, storeID string, files []Upload) error {
	if len(files) == 0 {
		return errors.Wrapf(errors.ErrValidation, "[API UploadGallery] no files")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("file", f.Filename)
		if err != nil {
			return errors.Wrapf(err, "[API UploadGallery] %s", f.Filename)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return errors.Wrapf(err, "[API UploadGallery] %s", f.Filename)
		}
	}
	if err := mw.Close(); err != nil {
		return errors.Wrapf(err, "[API UploadGallery]")
	}

	req, err := a.client.NewRequest(ctx, http.MethodPost, "/gallery/upload/"+url.PathEscape(storeID), bytes.NewReader(body.Bytes()))
	if err != nil {
		return errors.Wrapf(err, "[API UploadGallery]")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return errors.Wrapf(a.client.DoDecode(req, nil), "[API UploadGallery]")
}

func (a *API) DeleteGalleryImage(ctx context.Context, key string) error {
	return errors.Wrapf(a.client.DoJSON(ctx, http.MethodDelete, "/gallery/delete?key="+url.QueryEscape(key), nil, nil), "[API DeleteGalleryImage]")
}
