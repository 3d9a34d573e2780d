package hierarchy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	. "gopkg.in/check.v1"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) { TestingT(t) }

type HierarchySuite struct {
	ds *Dataset
}

var _ = Suite(&HierarchySuite{})

func (s *HierarchySuite) SetUpSuite(c *C) {
	ds, err := Default()
	c.Assert(err, IsNil)
	s.ds = ds
}

func (s *HierarchySuite) TestDefaultDataset(c *C) {
	h := s.ds.Hierarchy
	c.Assert(len(h.Countries()), Not(Equals), 0)

	usa, ok := h.Country("USA")
	c.Assert(ok, Equals, true)
	c.Assert(usa.SubdivisionLabel, Equals, "State")
	c.Assert(len(usa.Subdivisions), Not(Equals), 0)
	for _, st := range usa.Subdivisions {
		c.Assert(st.ParentISO, Equals, "USA")
	}

	c.Assert(len(s.ds.Subdivisions), Equals, 1)
	c.Assert(s.ds.Subdivisions[0].ISO, Equals, "USA")
	c.Assert(s.ds.Counties.ObjectName, Equals, "counties")
}

func (s *HierarchySuite) TestDerivedPopulations(c *C) {
	h := s.ds.Hierarchy
	var sum, max int64
	for _, co := range h.Countries() {
		sum += co.Population
		if co.Population > max {
			max = co.Population
		}
	}
	c.Assert(h.WorldPopulation(), Equals, sum)
	c.Assert(h.MaxPopulation(), Equals, max)
	c.Assert(h.MaxPopulation(), Equals, int64(1428627663))
}

func (s *HierarchySuite) TestFindCountryByTopologyID(c *C) {
	h := s.ds.Hierarchy

	usa := h.FindCountryByTopologyID("840")
	c.Assert(usa, NotNil)
	c.Assert(usa.ISO, Equals, "USA")

	// JSON numbers decode as float64.
	c.Assert(h.FindCountryByTopologyID(float64(840)).ISO, Equals, "USA")

	cod := h.FindCountryByTopologyID("180")
	c.Assert(cod, NotNil)
	c.Assert(cod.ISO, Equals, "COD")

	c.Assert(h.FindCountryByTopologyID("999"), IsNil)
	c.Assert(h.FindCountryByTopologyID(nil), IsNil)
	c.Assert(h.FindCountryByTopologyID(76), IsNil)
}

func (s *HierarchySuite) TestAliasMatchIsCaseInsensitive(c *C) {
	h := New([]*Country{
		{Place: Place{Name: "Testland", Population: 10}, ISO: "TST", Aliases: []string{"TESTLAND"}},
	}, map[string]string{"1": "testland"})
	c.Assert(h.FindCountryByTopologyID("1"), NotNil)
}

func (s *HierarchySuite) TestSubdivisionIndex(c *C) {
	h := s.ds.Hierarchy
	byFIPS := h.SubdivisionIndex("USA", CodeFIPS)
	c.Assert(byFIPS["06"].Name, Equals, "California")
	c.Assert(byFIPS["48"].Name, Equals, "Texas")

	bySC := h.SubdivisionIndex("BRA", CodeShort)
	c.Assert(bySC["SP"].Name, Equals, "São Paulo")

	c.Assert(h.SubdivisionIndex("XXX", CodeFIPS), HasLen, 0)

	st, ok := h.StateByFIPS("36")
	c.Assert(ok, Equals, true)
	c.Assert(st.Name, Equals, "New York")
}

func (s *HierarchySuite) TestDefaultDatasetIsValid(c *C) {
	cache := NewCountyCache(s.ds.CountySource)
	for _, fips := range []string{"06", "36", "48"} {
		_, err := cache.Load(context.Background(), fips)
		c.Assert(err, IsNil)
	}
	r := Validate(s.ds.Hierarchy, cache.Snapshot())
	c.Assert(r.Errors, HasLen, 0)
	c.Assert(r.Valid, Equals, true)
}

func (s *HierarchySuite) TestValidateCatchesBrokenData(c *C) {
	h := New([]*Country{
		{Place: Place{Name: "A", Population: 5}, ISO: "AAA", Aliases: []string{"A"}},
		{Place: Place{Name: "B", Population: 5, Lat: 120}, ISO: "AAA"},
		{Place: Place{Name: "United States", Population: 5}, ISO: "USA", Aliases: []string{"US"},
			Subdivisions: []*Subdivision{
				{Place: Place{Name: "X", Population: 1}, FIPS: "06"},
				{Place: Place{Name: "Y", Population: 1}, FIPS: "06"},
			}},
	}, nil)
	counties := map[string][]*County{
		"06": {{Place: Place{Name: "Wrong", Population: 1}, FIPS: "48001", ParentFIPS: "06"}},
		"99": {},
	}
	r := Validate(h, counties)
	c.Assert(r.Valid, Equals, false)

	_, dupISO := r.ErrorAt("countries[1].iso")
	c.Assert(dupISO, Equals, true)
	_, noAlias := r.ErrorAt("countries[1].aliases")
	c.Assert(noAlias, Equals, true)
	_, badCoords := r.ErrorAt("countries[1]")
	c.Assert(badCoords, Equals, true)
	_, dupCode := r.ErrorAt("countries[2].subdivisions[1]")
	c.Assert(dupCode, Equals, true)
	_, wrongState := r.ErrorAt("counties.06[0].fips")
	c.Assert(wrongState, Equals, true)
	_, orphan := r.ErrorAt("counties.99")
	c.Assert(orphan, Equals, true)
}

func (s *HierarchySuite) TestSubdivisionConfigStrategies(c *C) {
	byID := SubdivisionConfig{ISO: "USA", ObjectName: "states", CodeField: CodeFIPS, Strategy: StrategyFeatureID, PadWidth: 2}
	c.Assert(byID.Check(), IsNil)
	c.Assert(byID.ExtractCode(&geojson.Feature{ID: float64(6)}), Equals, "06")
	c.Assert(byID.ExtractCode(&geojson.Feature{ID: "48"}), Equals, "48")
	c.Assert(byID.ExtractCode(&geojson.Feature{}), Equals, "")
	c.Assert(byID.ExtractCode(nil), Equals, "")

	byProp := SubdivisionConfig{ISO: "IND", ObjectName: "states", CodeField: CodeShort, Strategy: StrategyProperty, Property: "st_code"}
	f := geojson.NewFeature(orb.Point{0, 0})
	f.Properties["st_code"] = "UP"
	c.Assert(byProp.ExtractCode(f), Equals, "UP")

	bySuffix := SubdivisionConfig{ISO: "BRA", ObjectName: "estados", CodeField: CodeShort, Strategy: StrategyISOSuffix}
	g := geojson.NewFeature(orb.Point{0, 0})
	g.Properties["iso_3166_2"] = "BR-SP"
	c.Assert(bySuffix.ExtractCode(g), Equals, "SP")
	c.Assert(bySuffix.ExtractCode(geojson.NewFeature(orb.Point{})), Equals, "")
}

func (s *HierarchySuite) TestSubdivisionConfigCheck(c *C) {
	c.Assert(SubdivisionConfig{}.Check(), NotNil)
	c.Assert(SubdivisionConfig{ISO: "X", ObjectName: "o", CodeField: "zz", Strategy: StrategyFeatureID}.Check(), NotNil)
	c.Assert(SubdivisionConfig{ISO: "X", ObjectName: "o", CodeField: CodeShort, Strategy: StrategyProperty}.Check(), NotNil)
	c.Assert(SubdivisionConfig{ISO: "X", ObjectName: "o", CodeField: CodeShort, Strategy: "magic"}.Check(), NotNil)
}

func (s *HierarchySuite) TestSkipFeature(c *C) {
	cfg := s.ds.Subdivisions[0]
	pr := geojson.NewFeature(orb.Point{})
	pr.Properties["name"] = "Puerto Rico"
	c.Assert(cfg.SkipFeature(pr), Equals, true)

	ca := geojson.NewFeature(orb.Point{})
	ca.Properties["name"] = "California"
	c.Assert(cfg.SkipFeature(ca), Equals, false)
	c.Assert(cfg.SkipFeature(nil), Equals, true)
}

func (s *HierarchySuite) TestISO3166Suffix(c *C) {
	c.Assert(ISO3166Suffix("BR-SP"), Equals, "SP")
	c.Assert(ISO3166Suffix("XX"), Equals, "XX")
	c.Assert(ISO3166Suffix("GB-ENG-X"), Equals, "ENG")
	c.Assert(ISO3166Suffix(""), Equals, "")
}

func (s *HierarchySuite) TestCountySourceFromFS(c *C) {
	src := FSCountySource{FS: fstest.MapFS{
		"counties/06.yaml": {Data: []byte("COUNTIES_06:\n  - {name: Alpine, population: 1190, lat: 38.6, lon: -119.8, fips: \"06003\"}\n")},
		"counties/11.yaml": {Data: []byte("OTHER: []\n")},
	}, Dir: "counties"}

	c.Assert(src.Has("06"), Equals, true)
	c.Assert(src.Has("48"), Equals, false)

	counties, err := src.LoadCounties(context.Background(), "06")
	c.Assert(err, IsNil)
	c.Assert(counties, HasLen, 1)
	c.Assert(counties[0].ParentFIPS, Equals, "06")

	empty, err := src.LoadCounties(context.Background(), "11")
	c.Assert(err, IsNil)
	c.Assert(empty, HasLen, 0)

	_, err = src.LoadCounties(context.Background(), "48")
	c.Assert(errors.Is(err, ErrNoCountyData), Equals, true)
}

type gatedSource struct {
	calls   atomic.Int32
	release chan struct{}
	fail    atomic.Bool
}

func (g *gatedSource) Has(fips string) bool { return fips == "06" }

func (g *gatedSource) LoadCounties(ctx context.Context, fips string) ([]*County, error) {
	g.calls.Add(1)
	if g.release != nil {
		<-g.release
	}
	if g.fail.Load() {
		return nil, errors.New("module failed to load")
	}
	return []*County{{Place: Place{Name: "Alpine", Population: 1190}, FIPS: "06003", ParentFIPS: "06"}}, nil
}

func (s *HierarchySuite) TestCountyCacheDeduplicates(c *C) {
	src := &gatedSource{release: make(chan struct{})}
	cache := NewCountyCache(src)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Load(context.Background(), "06")
			c.Check(err, IsNil)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	c.Assert(cache.Loading("06"), Equals, true)
	close(src.release)
	wg.Wait()

	c.Assert(src.calls.Load(), Equals, int32(1))
	c.Assert(cache.Loading("06"), Equals, false)
	loaded, ok := cache.Loaded("06")
	c.Assert(ok, Equals, true)
	c.Assert(loaded, HasLen, 1)

	_, err := cache.Load(context.Background(), "06")
	c.Assert(err, IsNil)
	c.Assert(src.calls.Load(), Equals, int32(1))
}

func (s *HierarchySuite) TestCountyCacheFailureIsRetryable(c *C) {
	src := &gatedSource{}
	src.fail.Store(true)
	var failures int
	cache := NewCountyCache(src)
	cache.OnLoad = func(_ string, err error) {
		if err != nil {
			failures++
		}
	}

	_, err := cache.Load(context.Background(), "06")
	c.Assert(err, NotNil)
	c.Assert(cache.Loading("06"), Equals, false)
	_, ok := cache.Loaded("06")
	c.Assert(ok, Equals, false)
	c.Assert(failures, Equals, 1)

	src.fail.Store(false)
	counties, err := cache.Load(context.Background(), "06")
	c.Assert(err, IsNil)
	c.Assert(counties, HasLen, 1)
	c.Assert(src.calls.Load(), Equals, int32(2))
}

func (s *HierarchySuite) TestCountyCacheUnknownState(c *C) {
	cache := NewCountyCache(&gatedSource{})
	_, err := cache.Load(context.Background(), "48")
	c.Assert(errors.Is(err, ErrNoCountyData), Equals, true)
	c.Assert(cache.Has("48"), Equals, false)
}

func (s *HierarchySuite) TestPlaceOf(c *C) {
	var nilCounty *County
	c.Assert(PlaceOf(nil), IsNil)
	c.Assert(PlaceOf(nilCounty), IsNil)
	c.Assert(IsNilEntity(nilCounty), Equals, true)

	city := &City{Place: Place{Name: "Lagos", Population: 15_000_000}}
	c.Assert(PlaceOf(city).Name, Equals, "Lagos")
	c.Assert(city.Kind(), Equals, KindCity)
}
