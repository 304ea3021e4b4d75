package catalog

import "strings"

// Category names seeded by the initial migration, in display order.
const (
	Sembako       = "Sembako"
	Makanan       = "Makanan"
	Minuman       = "Minuman"
	Kebersihan    = "Kebersihan"
	PerawatanDiri = "Perawatan Diri"
	Listrik       = "Listrik"
	AlatTulis     = "Alat Tulis"
	Lainnya       = "Lainnya"
)

// Categories lists every seeded category in sort order.
var Categories = []string{Sembako, Makanan, Minuman, Kebersihan, PerawatanDiri, Listrik, AlatTulis, Lainnya}

// Categorize returns the default category for an item name.
// Matching is case-insensitive: exact match first, then substring match.
// Falls back to Lainnya if nothing matches.
func Categorize(itemName string) string {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if name == "" {
		return Lainnya
	}

	if cat, ok := exactMatch[name]; ok {
		return cat
	}

	for _, entry := range substringMatches {
		if strings.Contains(name, entry.keyword) {
			return entry.category
		}
	}

	return Lainnya
}

var exactMatch = map[string]string{
	// Sembako
	"beras":         Sembako,
	"gula":          Sembako,
	"gula pasir":    Sembako,
	"minyak":        Sembako,
	"minyak goreng": Sembako,
	"garam":         Sembako,
	"tepung":        Sembako,
	"tepung terigu": Sembako,
	"telur":         Sembako,
	"telur ayam":    Sembako,
	"kecap":         Sembako,
	"saus":          Sembako,
	"rice":          Sembako,
	"sugar":         Sembako,
	"salt":          Sembako,
	"flour":         Sembako,
	"eggs":          Sembako,
	"cooking oil":   Sembako,

	// Makanan
	"mie":             Makanan,
	"mi":              Makanan,
	"mie instan":      Makanan,
	"indomie":         Makanan,
	"roti":            Makanan,
	"sarden":          Makanan,
	"kornet":          Makanan,
	"nugget":          Makanan,
	"sosis":           Makanan,
	"tahu":            Makanan,
	"tempe":           Makanan,
	"ayam":            Makanan,
	"daging":          Makanan,
	"ikan":            Makanan,
	"sayur":           Makanan,
	"bawang":          Makanan,
	"cabai":           Makanan,
	"keju":            Makanan,
	"biskuit":         Makanan,
	"snack":           Makanan,
	"bread":           Makanan,
	"noodles":         Makanan,
	"instant noodles": Makanan,

	// Minuman
	"kopi":        Minuman,
	"teh":         Minuman,
	"susu":        Minuman,
	"air mineral": Minuman,
	"galon":       Minuman,
	"sirup":       Minuman,
	"jus":         Minuman,
	"coffee":      Minuman,
	"tea":         Minuman,
	"milk":        Minuman,
	"water":       Minuman,

	// Kebersihan
	"sabun cuci":        Kebersihan,
	"sabun cuci piring": Kebersihan,
	"deterjen":          Kebersihan,
	"detergen":          Kebersihan,
	"pewangi":           Kebersihan,
	"pembersih lantai":  Kebersihan,
	"karbol":            Kebersihan,
	"pemutih":           Kebersihan,
	"tisu":              Kebersihan,
	"tissue":            Kebersihan,
	"kantong sampah":    Kebersihan,
	"spons":             Kebersihan,
	"sapu":              Kebersihan,
	"pel":               Kebersihan,
	"dish soap":         Kebersihan,
	"laundry detergent": Kebersihan,
	"trash bags":        Kebersihan,

	// Perawatan Diri
	"sabun mandi": PerawatanDiri,
	"sampo":       PerawatanDiri,
	"shampo":      PerawatanDiri,
	"shampoo":     PerawatanDiri,
	"pasta gigi":  PerawatanDiri,
	"odol":        PerawatanDiri,
	"sikat gigi":  PerawatanDiri,
	"deodoran":    PerawatanDiri,
	"pembalut":    PerawatanDiri,
	"toothpaste":  PerawatanDiri,
	"toothbrush":  PerawatanDiri,

	// Listrik
	"lampu":         Listrik,
	"bohlam":        Listrik,
	"baterai":       Listrik,
	"batu baterai":  Listrik,
	"token listrik": Listrik,
	"pulsa listrik": Listrik,
	"stop kontak":   Listrik,
	"colokan":       Listrik,
	"kabel":         Listrik,
	"batteries":     Listrik,
	"light bulb":    Listrik,

	// Alat Tulis
	"pulpen":    AlatTulis,
	"pena":      AlatTulis,
	"pensil":    AlatTulis,
	"buku":      AlatTulis,
	"kertas":    AlatTulis,
	"spidol":    AlatTulis,
	"penghapus": AlatTulis,
	"lakban":    AlatTulis,
	"selotip":   AlatTulis,
	"pen":       AlatTulis,
	"pencil":    AlatTulis,
	"paper":     AlatTulis,
}

// substringMatches is checked in order; longer, more specific keywords come
// first so "sabun mandi" wins over "sabun".
var substringMatches = []struct {
	keyword  string
	category string
}{
	// Perawatan Diri before Kebersihan: "sabun mandi" vs "sabun"
	{"sabun mandi", PerawatanDiri},
	{"sabun cuci", Kebersihan},
	{"pasta gigi", PerawatanDiri},
	{"sikat gigi", PerawatanDiri},
	{"sampo", PerawatanDiri},
	{"shampo", PerawatanDiri},

	// Minuman before Makanan so "roti susu" style names stay drinks only when explicit
	{"air mineral", Minuman},
	{"kopi", Minuman},
	{"susu", Minuman},
	{"teh ", Minuman},
	{"jus", Minuman},
	{"sirup", Minuman},

	// Sembako
	{"minyak goreng", Sembako},
	{"beras", Sembako},
	{"gula", Sembako},
	{"tepung", Sembako},
	{"telur", Sembako},
	{"garam", Sembako},
	{"kecap", Sembako},

	// Makanan
	{"mie", Makanan},
	{"roti", Makanan},
	{"biskuit", Makanan},
	{"sarden", Makanan},
	{"kornet", Makanan},
	{"nugget", Makanan},
	{"sosis", Makanan},
	{"daging", Makanan},
	{"ayam", Makanan},
	{"ikan", Makanan},
	{"sayur", Makanan},
	{"bawang", Makanan},

	// Kebersihan
	{"deterjen", Kebersihan},
	{"detergen", Kebersihan},
	{"pewangi", Kebersihan},
	{"pembersih", Kebersihan},
	{"pemutih", Kebersihan},
	{"tisu", Kebersihan},
	{"kantong sampah", Kebersihan},
	{"sabun", Kebersihan},

	// Listrik
	{"lampu", Listrik},
	{"baterai", Listrik},
	{"token listrik", Listrik},
	{"kabel", Listrik},
	{"listrik", Listrik},

	// Alat Tulis
	{"pulpen", AlatTulis},
	{"pensil", AlatTulis},
	{"spidol", AlatTulis},
	{"kertas", AlatTulis},
	{"buku tulis", AlatTulis},
	{"lakban", AlatTulis},
}
