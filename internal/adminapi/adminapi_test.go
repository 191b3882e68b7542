package adminapi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/amanice/storefront/config"
	"github.com/amanice/storefront/internal/app"
	"github.com/amanice/storefront/internal/domain"
	"github.com/amanice/storefront/internal/webserver"
)

const testCatalog = `{"products":[
	{"id":"m1","type":"Shirt","category":"men","image":"Assets/images/shirt.jpg","price":150},
	{"id":"w1","type":"Dress","category":"women","image":"Assets/images/dress.jpg","priceRange":"R200 - R300"},
	{"id":"k1","type":"Kids Clothing Pack","category":"kids","image":"Assets/images/pack.jpg"}
]}`

type testEnv struct {
	app  *app.Application
	root string
}

func newTestEnv(t *testing.T) *testEnv {
	workdir := t.TempDir()
	source := filepath.Join(workdir, "products.json")
	require.NoError(t, os.WriteFile(source, []byte(testCatalog), 0o644))

	cfg := *config.DefaultAppConfig
	cfg.System.Workdir = workdir
	cfg.Web.Secret = "test-secret"
	cfg.Catalog.Source = source
	cfg.Upload.Root = workdir

	db, err := gorm.Open(sqlite.Open(filepath.Join(workdir, "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	a := app.NewApplication(&cfg)
	a.OverrideDB(db)
	require.NoError(t, a.MigrateDB(false))
	require.NoError(t, a.InitStores())
	t.Cleanup(a.Release)

	webserver.Init(&cfg)
	Init(a)
	return &testEnv{app: a, root: workdir}
}

func (env *testEnv) request(method, path string, body interface{}, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	webserver.Echo().ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) login(t *testing.T) string {
	rec := env.request(http.MethodPost, "/api/admin/login",
		map[string]string{"username": "admin", "password": app.DefaultAdminPassword}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Token)
	return resp.Data.Token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func dataList(t *testing.T, rec *httptest.ResponseRecorder) []interface{} {
	list, ok := decodeBody(t, rec)["data"].([]interface{})
	require.True(t, ok, rec.Body.String())
	return list
}

func TestStorefrontProducts(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(http.MethodGet, "/api/products", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, dataList(t, rec), 3)

	rec = env.request(http.MethodGet, "/api/products?category=women", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, dataList(t, rec), 1)

	rec = env.request(http.MethodGet, "/api/products/m1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	product := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "Shirt", product["type"])
	assert.Equal(t, true, product["isDefault"])

	rec = env.request(http.MethodGet, "/api/products/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategoryPage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(http.MethodGet, "/api/categories/MEN?titles=Men,Women,Kids", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "men", page["category"])
	groups := page["groups"].([]interface{})
	require.Len(t, groups, 1)
	assert.Equal(t, "Shirt", groups[0].(map[string]interface{})["type"])
	specials := page["specials"].([]interface{})
	require.Len(t, specials, 1)
	assert.Equal(t, "sneakers.html", specials[0].(map[string]interface{})["link"])
	// "Women" also contains "men" and the last matching card wins
	assert.EqualValues(t, 1, page["cardIndex"])

	rec = env.request(http.MethodGet, "/api/categories/kids", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	page = decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Empty(t, page["groups"])
	assert.Nil(t, page["cardIndex"])
}

func TestFeaturedAndRecent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(http.MethodGet, "/api/featured", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, dataList(t, rec))

	rec = env.request(http.MethodGet, "/api/recent", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.LessOrEqual(t, len(dataList(t, rec)), 6)
}

func TestLegacyProductContract(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(http.MethodPost, "/admin/saveProduct", map[string]interface{}{
		"type": "Hoodie", "category": "MEN", "imageURL": "Assets/uploads/h.jpg", "price": "250", "stock_quantity": 4,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decodeBody(t, rec)
	assert.Equal(t, "success", saved["status"])
	assert.Equal(t, "Product saved successfully", saved["message"])
	id := saved["id"].(string)
	require.NotEmpty(t, id)

	rec = env.request(http.MethodPost, "/admin/saveProduct", map[string]interface{}{
		"type": "Hoodie", "category": "invalid", "image": "h.jpg",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid category. Must be: men, women, kids", decodeBody(t, rec)["message"])

	rec = env.request(http.MethodPost, "/admin/saveProduct", map[string]interface{}{"category": "men", "image": "h.jpg"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Product type is required", decodeBody(t, rec)["message"])

	rec = env.request(http.MethodGet, "/admin/getProducts", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stored []domain.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, "men", stored[0].Category)
	assert.Equal(t, 4, stored[0].StockQuantity)

	rec = env.request(http.MethodPost, "/admin/updateProduct", map[string]interface{}{"id": id, "price_range": "R200 - R300"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.request(http.MethodPost, "/admin/updateProduct", map[string]interface{}{"id": id}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No fields to update", decodeBody(t, rec)["message"])

	rec = env.request(http.MethodPost, "/admin/updateProduct", map[string]interface{}{"type": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(http.MethodPost, "/admin/updateProduct", map[string]interface{}{"id": "9999", "type": "x"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", decodeBody(t, rec)["message"])

	rec = env.request(http.MethodPost, "/admin/deleteProduct", map[string]interface{}{"id": "9999"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.request(http.MethodPost, "/admin/deleteProduct", map[string]interface{}{"id": id}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var logs int64
	env.app.DB().Model(&domain.AdminLog{}).Count(&logs)
	assert.Equal(t, int64(3), logs)
}

func TestAdminLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(http.MethodPost, "/api/admin/login", map[string]string{"username": "admin", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(http.MethodGet, "/api/admin/products", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := env.login(t)
	rec = env.request(http.MethodGet, "/api/admin/me", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", decodeBody(t, rec)["data"].(map[string]interface{})["username"])
}

func TestAdminProducts(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	rec := env.request(http.MethodPost, "/api/admin/products", map[string]interface{}{
		"type": "Jacket", "category": "Women", "image": "j.jpg", "price": 500,
	}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)["data"].(map[string]interface{})
	id := created["id"].(string)
	assert.Equal(t, "women", created["category"])

	rec = env.request(http.MethodGet, "/api/admin/products?perPage=2&page=2", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 4, body["meta"].(map[string]interface{})["total"])
	assert.Len(t, body["data"], 2)

	rec = env.request(http.MethodGet, "/api/admin/products?sort=price&order=DESC", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	first := dataList(t, rec)[0].(map[string]interface{})
	assert.Equal(t, "Jacket", first["type"])

	// editing a catalog product replaces it in the merged view
	rec = env.request(http.MethodPut, "/api/admin/products/m1", map[string]interface{}{"type": "Updated Shirt"}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "Updated Shirt", updated["type"])
	assert.Equal(t, false, updated["isDefault"])

	rec = env.request(http.MethodPut, "/api/admin/products/"+id, map[string]interface{}{"category": "nope"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(http.MethodDelete, "/api/admin/products/w1?default=true", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(http.MethodDelete, "/api/admin/products/"+id, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(http.MethodGet, "/api/products", nil, "")
	products := dataList(t, rec)
	types := make([]string, 0, len(products))
	for _, p := range products {
		types = append(types, p.(map[string]interface{})["type"].(string))
	}
	assert.ElementsMatch(t, []string{"Updated Shirt", "Kids Clothing Pack"}, types)
}

func TestCartFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(http.MethodPost, "/api/cart/checkout", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(http.MethodPost, "/api/cart/items", map[string]string{"name": "Shirt", "priceRange": "R150"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	rec = env.request(http.MethodPost, "/api/cart/items", map[string]string{"name": "Dress", "priceRange": "R200 - R300"}, "", cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, dataList(t, rec), 2)

	rec = env.request(http.MethodDelete, "/api/cart/items/0", nil, "", cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	lines := dataList(t, rec)
	require.Len(t, lines, 1)
	assert.Equal(t, "Dress", lines[0].(map[string]interface{})["name"])

	rec = env.request(http.MethodPost, "/api/cart/items", map[string]string{"priceRange": "R1"}, "", cookies...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(http.MethodPost, "/api/cart/checkout", nil, "", cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	order := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Contains(t, order["url"], "https://wa.me/27731635803?text=")
	assert.Contains(t, order["message"], "Dress")

	// another session has its own cart
	rec = env.request(http.MethodGet, "/api/cart", nil, "")
	assert.Empty(t, dataList(t, rec))

	rec = env.request(http.MethodDelete, "/api/cart", nil, "", cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, dataList(t, rec))
}

func pngBytes() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
}

func TestImageUpload(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="my photo.png"`)
	header.Set(echo.HeaderContentType, "image/png")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(pngBytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/upload", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	webserver.Echo().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	path := body["path"].(string)
	assert.Regexp(t, `^Assets/uploads/my_photo_\d+_[0-9a-z]+\.png$`, path)
	_, err = os.Stat(filepath.Join(env.root, filepath.FromSlash(path)))
	require.NoError(t, err)

	rec = env.request(http.MethodPost, "/admin/delete", map[string]string{"imagePath": "../secret.png"}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.request(http.MethodPost, "/admin/delete", map[string]string{"imagePath": path}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.request(http.MethodPost, "/admin/delete", map[string]string{"imagePath": path}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBase64Upload(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(http.MethodPost, "/api/upload", map[string]string{
		"image": "data:image/png;base64," + base64String(pngBytes()), "fileName": "a.png",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "success", decodeBody(t, rec)["status"])

	rec = env.request(http.MethodPost, "/api/upload", map[string]string{
		"image": base64String([]byte("not an image at all")), "fileName": "a.png", "fileType": "image/png",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLocalImageFallback(t *testing.T) {
	env := newTestEnv(t)
	// a file where the upload directory should be makes the directory unwritable
	require.NoError(t, os.MkdirAll(filepath.Join(env.root, "Assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.root, "Assets", "uploads"), []byte("x"), 0o644))

	rec := env.request(http.MethodPost, "/api/upload", map[string]string{
		"image": "data:image/png;base64," + base64String(pngBytes()), "fileName": "a.png",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	path := decodeBody(t, rec)["path"].(string)
	assert.Regexp(t, `^api/images/`, path)

	rec = env.request(http.MethodGet, "/"+path, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, pngBytes(), rec.Body.Bytes())

	rec = env.request(http.MethodGet, "/api/images/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// the declared data URL type is replaced by the sniffed one
	rec = env.request(http.MethodPost, "/api/upload", map[string]string{
		"image": "data:text/html;base64," + base64String(pngBytes()), "fileName": "b.png", "fileType": "image/png",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	path = decodeBody(t, rec)["path"].(string)
	rec = env.request(http.MethodGet, "/"+path, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
}

func TestExportImport(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	rec := env.request(http.MethodGet, "/api/admin/products/export.csv", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), ".csv")
	assert.Contains(t, rec.Body.String(), "Kids Clothing Pack")

	rec = env.request(http.MethodGet, "/api/admin/products/export.xlsx", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get(echo.HeaderContentType))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	csvData := "type,category,image,price\nScarf,women,s.jpg,80\nBad,space,b.jpg,1\n"
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "products.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csvData))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/products/import.csv", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec = httptest.NewRecorder()
	webserver.Echo().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.EqualValues(t, 1, result["imported"])
	assert.EqualValues(t, 1, result["failed"])
}

func base64String(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func TestJobsAndStatus(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	rec := env.request(http.MethodGet, "/api/admin/jobs", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, dataList(t, rec), 3)

	rec = env.request(http.MethodPost, "/api/admin/jobs/"+app.JobCatalogRefresh+"/run", nil, token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.request(http.MethodPost, "/api/admin/jobs/nope/run", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.request(http.MethodDelete, "/api/admin/products/k1", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(http.MethodGet, "/api/admin/status", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "sqlite", info["databaseType"])
	summary := info["catalog"].(map[string]interface{})
	assert.EqualValues(t, 2, summary["total"])
	assert.EqualValues(t, 2, summary["default"])
	assert.EqualValues(t, 1, summary["tombstones"])

	rec = env.request(http.MethodGet, "/api/admin/logs?action=delete", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["meta"].(map[string]interface{})["total"])
	entry := dataList(t, rec)[0].(map[string]interface{})
	assert.Equal(t, "admin", entry["opr_name"])
}
