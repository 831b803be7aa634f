package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/MeKo-Tech/inpaint/internal/pipeline"
	"github.com/MeKo-Tech/inpaint/internal/polygons"
	"github.com/MeKo-Tech/inpaint/internal/server"
	"github.com/MeKo-Tech/inpaint/internal/testutil"
	"github.com/MeKo-Tech/inpaint/internal/utils"
	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"
)

const requestTimeout = 30 * time.Second

// anInpaintingServerIsRunning starts the HTTP handlers in process with the
// identity engine.
func (testCtx *TestContext) anInpaintingServerIsRunning() error {
	return testCtx.startServer(server.RateLimitConfig{})
}

func (testCtx *TestContext) aRateLimitedServerIsRunning(perMinute int) error {
	return testCtx.startServer(server.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute})
}

func (testCtx *TestContext) startServer(rl server.RateLimitConfig) error {
	pc := pipeline.DefaultConfig()
	pc.Engine = pipeline.EngineIdentity
	pc.InputSize = 64
	pc.ModelsDir = testCtx.Path("models")

	s, err := server.NewServer(server.Config{
		CORSOrigin:     "*",
		MaxUploadMB:    5,
		TimeoutSec:     10,
		PipelineConfig: pc,
		RateLimit:      rl,
	})
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	testCtx.HTTPServer = httptest.NewServer(s.Handler())
	testCtx.closeFn = s.Close
	return nil
}

func (testCtx *TestContext) client() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

func (testCtx *TestContext) recordResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPBody = body
	testCtx.LastHTTPHeaders = map[string]string{}
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) iGET(path string) error {
	if testCtx.HTTPServer == nil {
		return errors.New("no server running")
	}
	resp, err := testCtx.client().Get(testCtx.HTTPServer.URL + path)
	if err != nil {
		return err
	}
	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) iPOST(imageName, polygonName, path string) error {
	return testCtx.postForm(imageName, polygonName, path, nil)
}

func (testCtx *TestContext) iPOSTWithFields(imageName, polygonName, path string, table *godog.Table) error {
	fields := map[string]string{}
	for _, row := range table.Rows {
		if len(row.Cells) != 2 {
			return errors.New("field rows need two cells")
		}
		fields[row.Cells[0].Value] = row.Cells[1].Value
	}
	return testCtx.postForm(imageName, polygonName, path, fields)
}

func (testCtx *TestContext) postForm(imageName, polygonName, path string, fields map[string]string) error {
	if testCtx.HTTPServer == nil {
		return errors.New("no server running")
	}
	imgData, err := os.ReadFile(testCtx.Path(imageName))
	if err != nil {
		return err
	}
	polyData, err := os.ReadFile(testCtx.Path(polygonName))
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", imageName)
	if err != nil {
		return err
	}
	if _, err := part.Write(imgData); err != nil {
		return err
	}
	if err := mw.WriteField("polygons", string(polyData)); err != nil {
		return err
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	resp, err := testCtx.client().Post(testCtx.HTTPServer.URL+path, mw.FormDataContentType(), &body)
	if err != nil {
		return err
	}
	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("status %d, want %d\nBody: %s", testCtx.LastHTTPStatusCode, code, testCtx.LastHTTPBody)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != value {
		return fmt.Errorf("header %s is %q, want %q", name, got, value)
	}
	return nil
}

func (testCtx *TestContext) theResponseJSONField(field, value string) error {
	var data map[string]any
	if err := json.Unmarshal(testCtx.LastHTTPBody, &data); err != nil {
		return fmt.Errorf("response is not JSON: %w\nBody: %s", err, testCtx.LastHTTPBody)
	}
	got, ok := data[field]
	if !ok {
		return fmt.Errorf("response has no field %s", field)
	}
	if fmt.Sprint(got) != value {
		return fmt.Errorf("field %s is %v, want %s", field, got, value)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeAnImage(format string, w, h int) error {
	img, got, err := utils.DecodeImage(bytes.NewReader(testCtx.LastHTTPBody))
	if err != nil {
		return fmt.Errorf("response is not an image: %w", err)
	}
	if got != format {
		return fmt.Errorf("response image is %s, want %s", got, format)
	}
	if gw, gh := utils.Dimensions(img); gw != w || gh != h {
		return fmt.Errorf("response image is %dx%d, want %dx%d", gw, gh, w, h)
	}
	return nil
}

func (testCtx *TestContext) theResponseImageShouldBeUnchanged() error {
	img, _, err := utils.DecodeImage(bytes.NewReader(testCtx.LastHTTPBody))
	if err != nil {
		return err
	}
	return uniformCheck(img)
}

func uniformCheck(img image.Image) error {
	w, h := utils.Dimensions(img)
	diff, err := testutil.DiffPixels(testutil.CreateTestImage(w, h, uniformColor), img)
	if err != nil {
		return err
	}
	if len(diff) > 0 {
		return fmt.Errorf("image differs from the input at %d pixel(s)", len(diff))
	}
	return nil
}

// iSendOverWebSocket runs one request over /ws/inpaint and keeps the final
// message as the response body.
func (testCtx *TestContext) iSendOverWebSocket(imageName, polygonName string) error {
	if testCtx.HTTPServer == nil {
		return errors.New("no server running")
	}
	imgData, err := os.ReadFile(testCtx.Path(imageName))
	if err != nil {
		return err
	}
	polyData, err := os.ReadFile(testCtx.Path(polygonName))
	if err != nil {
		return err
	}
	// The polygons travel as JSON inside the message.
	parsed, err := polygons.Parse(polyData)
	if err != nil {
		return err
	}
	polys, err := json.Marshal(parsed)
	if err != nil {
		return err
	}

	url := "ws" + strings.TrimPrefix(testCtx.HTTPServer.URL, "http") + "/ws/inpaint"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer func() { _ = conn.Close() }()

	msg, err := json.Marshal(map[string]any{
		"image":    imgData,
		"polygons": json.RawMessage(polys),
	})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return err
	}

	_ = conn.SetReadDeadline(time.Now().Add(requestTimeout))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read websocket message: %w", err)
		}
		var m struct {
			Type   string `json:"type"`
			Status string `json:"status"`
			Result *struct {
				Image []byte `json:"image"`
			} `json:"result"`
		}
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		if m.Type == "error" || m.Status == "completed" {
			testCtx.LastHTTPBody = data
			if m.Result != nil {
				testCtx.LastHTTPBody = m.Result.Image
			}
			testCtx.LastHTTPStatusCode = http.StatusOK
			if m.Type == "error" {
				testCtx.LastHTTPStatusCode = http.StatusBadRequest
			}
			return nil
		}
	}
}

func (testCtx *TestContext) theWebSocketImageShouldBeUnchanged() error {
	if testCtx.LastHTTPStatusCode != http.StatusOK {
		return fmt.Errorf("websocket request failed: %s", testCtx.LastHTTPBody)
	}
	return testCtx.theResponseImageShouldBeUnchanged()
}

// RegisterServerSteps registers the HTTP and websocket steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^an inpainting server is running$`, testCtx.anInpaintingServerIsRunning)
	sc.Step(`^an inpainting server allowing (\d+) requests? per minute is running$`, testCtx.aRateLimitedServerIsRunning)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST "([^"]*)" with polygons "([^"]*)" to "([^"]*)"$`, testCtx.iPOST)
	sc.Step(`^I POST "([^"]*)" with polygons "([^"]*)" to "([^"]*)" with fields:$`, testCtx.iPOSTWithFields)
	sc.Step(`^I send "([^"]*)" with polygons "([^"]*)" over the websocket$`, testCtx.iSendOverWebSocket)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseJSONField)
	sc.Step(`^the response should be a "([^"]*)" image of (\d+)x(\d+)$`, testCtx.theResponseShouldBeAnImage)
	sc.Step(`^the response image should be unchanged$`, testCtx.theResponseImageShouldBeUnchanged)
	sc.Step(`^the websocket result image should be unchanged$`, testCtx.theWebSocketImageShouldBeUnchanged)
}
