// Package storagetest provides an in-memory storefront database seeded with
// a small, fixed dataset for tests.
package storagetest

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/cupid-chocolate/giftlab/internal/storage"
)

// Fixture CSVs keyed by table name.
//
// Customer C001 has personal history (one returned row), C002 is a Gold
// customer in another country, C003 only has a returned row, C004 is a
// Platinum customer with no events and C005 is a Gold customer with no
// events who shares C001's age band and country. Matchmaking user U003 has
// no openness score and no interests.
var Fixtures = map[string]string{
	"dim_customer": `customer_id,first_name,last_name,city,state_province,country_code,age_band,preferred_language,loyalty_tier,consent_marketing
C001,Ava,Stone,Austin,TX,US,25-34,en,Gold,True
C002,Ben,Ortiz,Toronto,ON,CA,25-34,en,Gold,False
C003,Chloe,Martin,Paris,,FR,35-44,fr,Silver,True
C004,Dan,Lee,Seoul,,KR,18-24,ko,Platinum,True
C005,Eve,Rivera,Denver,CO,US,25-34,en,Gold,True
`,
	"dim_product": `product_id,product_name,brand,category,subcategory,flavor,unit_price
P001,Dark Truffle,Cupid,Truffles,Dark,Raspberry,12.5
P002,Milk Hearts,Cupid,Bars,Milk,Caramel,8
P003,White Bouquet,Aphrodite,Gift Boxes,White,Vanilla,25
`,
	"fact_sales": `sale_id,order_date,customer_id,product_id,channel,promotion_code,quantity_sold,total_amount,cost_amount
S1,2025-01-15,C001,P001,online,VDAY10,2,25,10
S2,2025-01-20,C002,P002,retail,,3,24,12
S3,2025-02-05,C001,P003,online,VDAY10,1,25,15
S4,2025-02-10,C003,P001,online,,4,50,20
S5,2025-02-12,C002,P003,retail,LOVE5,2,50,22
`,
	"gift_recommender": `customer_id,product_name,product_category,product_subcategory,brand,gift_persona,delivery_speed,rating,discount_pct,list_price,unit_price,returned_flag,event_ts,event_type,avg_order_value_user
C001,Dark Truffle,Truffles,Dark,Cupid,romantic,express,4.8,10,14,12.5,False,2025-02-10T10:00:00,purchase,30
C001,Milk Hearts,Bars,Milk,Cupid,romantic,standard,4.0,0,8,8,False,2025-01-05T09:00:00,purchase,30
C001,White Bouquet,Gift Boxes,White,Aphrodite,friend,express,3.5,5,26,25,True,2025-02-12T12:00:00,purchase,30
C002,White Bouquet,Gift Boxes,White,Aphrodite,romantic,express,4.9,20,30,25,False,2025-02-01T08:00:00,purchase,55
C002,Milk Hearts,Bars,Milk,Cupid,self,standard,3.9,0,8,8,,2025-01-20T08:00:00,view,55
C003,Milk Hearts,Bars,Milk,Cupid,family,standard,4.2,15,9,8,True,2025-02-03T08:00:00,purchase,18
`,
	"supply_chain": `product_id,vendor_lead_time_days,stock_level,delay_reason,region,cost_per_unit
P001,10,100,weather,US,5
P002,4,800,none,CA,3
P003,20,500,port congestion,FR,9
`,
	"matchmaking": `user_id,age,location_region,openness,conscientiousness,extraversion,agreeableness,neuroticism,interests
U001,29,north,0.8,0.6,0.5,0.7,0.3,"hiking, chocolate,jazz"
U002,31,north,0.6,0.7,0.4,0.9,0.2,"jazz,chocolate,film"
U003,45,south,,0.5,0.5,0.5,0.5,
U004,26,west,0.1,0.1,0.9,0.2,0.9,gaming
`,
	"global_routing": `region,request_count_per_min,p95_latency_ms,failure_rate
us-east,1200,180,0.01
eu-west,800,240,0.03
ap-south,400,420,0.08
`,
	"love_notes_telemetry": `note_id,region_destination,latency_ms,delivery_status
N1,us-east,120,delivered
N2,us-east,180,delivered
N3,eu-west,300,failed
N4,eu-west,200,delivered
N5,ap-south,500,delayed
`,
}

// NewDB opens a migrated, empty in-memory SQLite database that is closed
// when the test ends.
func NewDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.Migrate(context.Background(), db))
	return db
}

// NewSeededDB opens an in-memory database loaded with Fixtures.
func NewSeededDB(t testing.TB) *sql.DB {
	t.Helper()

	db := NewDB(t)
	Seed(t, db, Fixtures)
	return db
}

// Seed imports the given CSVs, replacing the contents of each table.
func Seed(t testing.TB, db *sql.DB, tables map[string]string) {
	t.Helper()

	loader := storage.NewLoader(db, "", nil)
	for _, table := range storage.Tables {
		data, ok := tables[table.Name]
		if !ok {
			continue
		}
		_, err := loader.ImportCSV(context.Background(), table.Name, strings.NewReader(data))
		require.NoError(t, err, "seed %s", table.Name)
	}
}
