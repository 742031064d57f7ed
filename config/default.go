package config

// Palette of the replacement design.
var (
	White          = RGB(1, 1, 1)
	Black          = RGB(0, 0, 0)
	BackgroundGray = RGB8(238, 238, 238)
	AccentBlue     = RGB8(90, 177, 235)
	StampGray      = RGB(0.9, 0.9, 0.9)
)

// Default is the design for supplier quotes on A4 paper: the supplier
// header, information table, quote code and bottom banner are blanked, and
// the reseller's header, client block, quote block and footer are drawn in
// their place.
func Default() Config {
	bold := func(text string, x, y float64) TextConfig {
		return TextConfig{Text: text, At: [2]float64{x, y}, Font: "Helvetica-Bold", Size: 10, Color: Black}
	}
	footer := func(text string, x float64) TextConfig {
		return TextConfig{Text: text, At: [2]float64{x, 57}, Font: "Helvetica", Size: 8, Color: Black}
	}
	return Config{
		Redaction: RedactionConfig{
			Strategy: "destructive",
			Fill:     White,
			FirstPage: []ZoneConfig{
				{Label: "Logo ADF", Rect: [4]float64{400, 722, 570, 822}},
				{Label: "Tableau informations", Rect: [4]float64{300, 642, 570, 717}},
				{Label: "Code Unique du Devis", Rect: [4]float64{20, 632, 300, 672}},
			},
			AllPages: []ZoneConfig{
				{Label: "Bannière ADF bas de page", Rect: [4]float64{20, 42, 570, 82}},
			},
			Optional: []ZoneConfig{
				{Label: "VISCOGLIOSI (gros)", Rect: [4]float64{50, 752, 200, 792}},
				{Label: "VISCOGLIOSI (petit)", Rect: [4]float64{50, 672, 300, 712}},
			},
		},
		Overlay: OverlayConfig{
			Mode: "direct",
			Logo: ImageConfig{Path: "logo.png", Rect: [4]float64{30, 742, 130, 822}, Scope: "first"},
			Company: BlockConfig{
				Scope:       "first",
				Backgrounds: []RectConfig{{Label: "company", Rect: [4]float64{30, 652, 570, 722}, Color: BackgroundGray}},
				Lines: []TextConfig{
					{Text: "Fenêtre sur le monde", At: [2]float64{32, 732}, Font: "Helvetica-Bold", Size: 14, Color: Black},
					bold("885 BOULEVARD DES PRINCES", 32, 707),
					bold("06210 MANDELIEU-LA-NAPOULE", 32, 692),
					bold("Tél. : 06 51 17 39 39", 32, 677),
					bold("E-mail : FENETRE_SUR_LE_MONDE@gmail.com", 32, 662),
				},
			},
			Client: BlockConfig{
				Scope: "first",
				Lines: []TextConfig{
					bold("Nom prénom", 400, 707),
					bold("885 BOULEVARD DES PRINCES", 400, 692),
					bold("06210 MANDELIEU-LA-NAPOULE", 400, 677),
				},
			},
			Quote: BlockConfig{
				Scope: "first",
				Backgrounds: []RectConfig{
					{Label: "quote", Rect: [4]float64{400, 757, 570, 812}, Color: BackgroundGray},
				},
				Lines: []TextConfig{
					bold("Date :", 415, 797),
					bold("DEVIS N° :", 415, 782),
					bold("Code Client :", 415, 767),
				},
			},
			Footer: BlockConfig{
				Scope:       "all",
				Backgrounds: []RectConfig{{Label: "footer", Rect: [4]float64{30, 42, 570, 82}, Color: BackgroundGray}},
				Lines: []TextConfig{
					footer("SIRET : 94366500000015", 38),
					footer("Adresse : 885 BOULEVARD DES PRINCES, 06210 MANDELIEU-LA-NAPOULE", 140),
					footer("Téléphone : +33677887744", 460),
				},
			},
			Separators: []RectConfig{
				{Label: "quote rule", Rect: [4]float64{400, 754, 570, 755}, Color: AccentBlue, Scope: "first"},
				{Label: "header rule", Rect: [4]float64{30, 648, 570, 649}, Color: AccentBlue, Scope: "first"},
				{Label: "footer rule", Rect: [4]float64{30, 39, 570, 40}, Color: AccentBlue, Scope: "all"},
			},
			Stamp: StampConfig{Font: "Helvetica", Size: 40, Rotation: 45, Opacity: 0.3, Color: StampGray},
			PageNumbers: PageNumberConfig{
				Format: "Page {page}",
				At:     [2]float64{545, 30},
				Size:   10,
				Align:  "right",
			},
		},
		Finance: FinanceConfig{
			Anchor:   "ACOMPTE 30%",
			Currency: "EUR",
			Source:   "content",
			Splits: []SplitConfig{
				{Label: "deposit_30", Percent: 30},
				{Label: "deposit_50", Percent: 50},
				{Label: "balance_20", Percent: 20},
			},
			Placements: []PlacementConfig{
				{Split: "deposit_30", At: [2]float64{110, 379}, Template: ": {amount}  {currency}", Font: "Helvetica", Size: 10},
				{Split: "deposit_50", At: [2]float64{251, 369}, Template: "{amount}  {currency}", Font: "Helvetica", Size: 10},
				{Split: "balance_20", At: [2]float64{190, 358}, Template: " {amount} {currency}", Font: "Helvetica", Size: 10},
			},
		},
		Metadata: MetadataConfig{
			Title:   "Devis",
			Subject: "Devis",
			Creator: "quotekit",
		},
		Output: OutputConfig{Suffix: "_modifie"},
		Log:    LogConfig{Level: "info", Format: "auto"},
	}
}
