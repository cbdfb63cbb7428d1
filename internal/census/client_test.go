package census

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/marketdata/internal/model"
)

var testGeo = model.Geography{
	StateFIPS:  "06",
	CountyFIPS: "075",
	TractFIPS:  "010100",
}

func TestFetchVariables_Tract(t *testing.T) {
	var gotPath string
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			["NAME","B01003_001E","B19013_001E","B25077_001E","state","county","tract"],
			["Census Tract 101, San Francisco County, California","4805","-666666666",null,"06","075","010100"]
		]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	result, err := c.FetchVariables(context.Background(), testGeo, 2023, model.LevelTract,
		[]string{"B01003_001E", "B19013_001E", "B25077_001E"})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "/2023/acs/acs5", gotPath)
	assert.Equal(t, "NAME,B01003_001E,B19013_001E,B25077_001E", gotQuery.Get("get"))
	assert.Equal(t, "tract:010100", gotQuery.Get("for"))
	assert.Equal(t, "state:06 county:075", gotQuery.Get("in"))

	assert.Equal(t, "Census Tract 101, San Francisco County, California", result.Name)
	require.NotNil(t, result.Vars["B01003_001E"])
	assert.InDelta(t, 4805, *result.Vars["B01003_001E"], 0.001)
	// Suppression sentinel decodes as missing.
	assert.Nil(t, result.Vars["B19013_001E"])
	// Null cell decodes as missing.
	assert.Nil(t, result.Vars["B25077_001E"])
}

func TestFetchVariables_LevelClauses(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = io.WriteString(w, `[["NAME","B01003_001E"],["X","1"]]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	codes := []string{"B01003_001E"}

	_, err := c.FetchVariables(context.Background(), testGeo, 2023, model.LevelCounty, codes)
	require.NoError(t, err)
	assert.Equal(t, "county:075", gotQuery.Get("for"))
	assert.Equal(t, "state:06", gotQuery.Get("in"))

	_, err = c.FetchVariables(context.Background(), testGeo, 2023, model.LevelState, codes)
	require.NoError(t, err)
	assert.Equal(t, "state:06", gotQuery.Get("for"))
	assert.Empty(t, gotQuery.Get("in"))

	_, err = c.FetchVariables(context.Background(), testGeo, 2023, model.LevelNational, codes)
	require.NoError(t, err)
	assert.Equal(t, "us:1", gotQuery.Get("for"))
}

func TestFetchVariables_APIKeyAppended(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = io.WriteString(w, `[["NAME","B01003_001E"],["X","1"]]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithAPIKey("secret"))
	_, err := c.FetchVariables(context.Background(), testGeo, 2023, model.LevelTract, []string{"B01003_001E"})
	require.NoError(t, err)
	assert.Equal(t, "secret", gotQuery.Get("key"))
}

func TestFetchVariables_NoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[["NAME","B01003_001E"]]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	result, err := c.FetchVariables(context.Background(), testGeo, 2023, model.LevelTract, []string{"B01003_001E"})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestFetchVariables_NotFoundYear(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	result, err := c.FetchVariables(context.Background(), testGeo, 2020, model.LevelTract, []string{"B01003_001E"})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestFetchVariables_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	_, err := c.FetchVariables(context.Background(), testGeo, 2023, model.LevelTract, []string{"B01003_001E"})
	assert.Error(t, err)
}

func TestFetchVariables_TooManyCodes(t *testing.T) {
	c := NewClient()
	codes := make([]string, MaxVariablesPerCall+1)
	for i := range codes {
		codes[i] = "B01003_001E"
	}
	_, err := c.FetchVariables(context.Background(), testGeo, 2023, model.LevelTract, codes)
	assert.Error(t, err)
}

func TestFetchComponents(t *testing.T) {
	var gotPath string
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		_, _ = io.WriteString(w, `[
			["BIRTHS","DEATHS","DOMESTICMIG","INTERNATIONALMIG","NETMIG","POP","state","county"],
			["9500","7200","-4100","5200","1100","815201","06","075"]
		]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	comp, err := c.FetchComponents(context.Background(), testGeo, 2023)
	require.NoError(t, err)
	require.NotNil(t, comp)

	assert.Equal(t, "/2023/pep/components", gotPath)
	assert.Equal(t, "county:075", gotQuery.Get("for"))

	assert.Equal(t, 9500, *comp.Births)
	assert.Equal(t, 7200, *comp.Deaths)
	// Negative domestic migration is a real value, not a sentinel.
	assert.Equal(t, -4100, *comp.DomesticMig)
	assert.Equal(t, 5200, *comp.InternationalMig)
	assert.Equal(t, 1100, *comp.NetMig)
	assert.Equal(t, 815201, *comp.Population)
}

func TestFetchComponents_NoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	comp, err := c.FetchComponents(context.Background(), testGeo, 2023)
	require.NoError(t, err)
	assert.Nil(t, comp)
}

func TestFetchFlows_SumsRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2022/acs/flows", r.URL.Path)
		_, _ = io.WriteString(w, `[
			["MOVEDIN","MOVEDOUT","MOVEDNET","state","county"],
			["1200","800","400","06","075"],
			["300",null,"300","06","075"],
			["500","250","250","06","075"]
		]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	flows, err := c.FetchFlows(context.Background(), testGeo, 2022)
	require.NoError(t, err)
	require.NotNil(t, flows)

	assert.Equal(t, 2000, *flows.MovedIn)
	assert.Equal(t, 1050, *flows.MovedOut)
	assert.Equal(t, 950, *flows.MovedNet)
}

func TestParseValue(t *testing.T) {
	assert.Nil(t, parseValue(""))
	assert.Nil(t, parseValue("N/A"))
	assert.Nil(t, parseValue("-666666666"))
	assert.Nil(t, parseValue("-111111111"))

	v := parseValue("-4100")
	require.NotNil(t, v)
	assert.InDelta(t, -4100, *v, 0.001)

	v = parseValue("2589.5")
	require.NotNil(t, v)
	assert.InDelta(t, 2589.5, *v, 0.001)
}
