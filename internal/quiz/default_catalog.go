package quiz

// 档位 ID，声明顺序即价格升序。
const (
	TierStarter      = "starter"
	TierBasic        = "basic"
	TierAdvanced     = "advanced"
	TierStandard     = "standard"
	TierProfessional = "professional"
	TierPremium      = "premium"
	TierEnterprise   = "enterprise"
	TierUltimate     = "ultimate"
)

var tierOrder = []string{TierStarter, TierBasic, TierAdvanced, TierStandard, TierProfessional, TierPremium, TierEnterprise, TierUltimate}

// scores 按 tierOrder 顺序展开为 map。
func scores(v ...int) map[string]int {
	m := make(map[string]int, len(tierOrder))
	for i, id := range tierOrder {
		m[id] = v[i]
	}
	return m
}

// DefaultCatalog 返回家庭安防问卷：6 道题，8 个套餐档位。
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultTiers(), defaultQuestions())
	if err != nil {
		// 内置数据有误属于编程错误
		panic(err)
	}
	return c
}

func defaultQuestions() []Question {
	return []Question{
		{
			Number: 1,
			Prompt: "What is the size of your home?",
			Options: []Option{
				{Key: "A", Text: "Small (1-2 bedrooms, apartment)", Scores: scores(3, 2, 1, 0, 0, 0, 0, 0)},
				{Key: "B", Text: "Medium (3-4 bedrooms, house)", Scores: scores(1, 2, 3, 2, 1, 0, 0, 0)},
				{Key: "C", Text: "Large (5+ bedrooms, mansion)", Scores: scores(0, 0, 1, 2, 3, 2, 3, 3)},
			},
		},
		{
			Number: 2,
			Prompt: "What is your primary security concern?",
			Options: []Option{
				{Key: "A", Text: "Burglary/Theft", Scores: scores(2, 3, 2, 2, 1, 1, 1, 0)},
				{Key: "B", Text: "Fire/Smoke detection", Scores: scores(1, 1, 2, 3, 2, 2, 2, 2)},
				{Key: "C", Text: "Comprehensive protection (all threats)", Scores: scores(0, 0, 1, 1, 2, 3, 3, 3)},
			},
		},
		{
			Number: 3,
			Prompt: "Do you need remote monitoring capabilities?",
			Options: []Option{
				{Key: "A", Text: "Yes, I want to monitor from anywhere via app", Scores: scores(0, 1, 2, 3, 3, 3, 3, 3)},
				{Key: "B", Text: "Basic notifications are enough", Scores: scores(3, 3, 2, 1, 1, 0, 0, 0)},
				{Key: "C", Text: "Not necessary", Scores: scores(2, 2, 1, 1, 0, 0, 0, 0)},
			},
		},
		{
			Number: 4,
			Prompt: "What is your budget range?",
			Options: []Option{
				{Key: "A", Text: "Under ₹40,000", Scores: scores(3, 2, 1, 0, 0, 0, 0, 0)},
				{Key: "B", Text: "₹40,000 - ₹1,25,000", Scores: scores(1, 2, 3, 3, 2, 1, 0, 0)},
				{Key: "C", Text: "Above ₹1,25,000", Scores: scores(0, 0, 1, 1, 2, 3, 3, 3)},
			},
		},
		{
			Number: 5,
			Prompt: "Do you need professional monitoring services?",
			Options: []Option{
				{Key: "A", Text: "Yes, 24/7 professional monitoring", Scores: scores(0, 0, 1, 2, 3, 3, 3, 3)},
				{Key: "B", Text: "Self-monitoring is fine", Scores: scores(3, 3, 2, 2, 1, 1, 0, 0)},
				{Key: "C", Text: "Not sure yet", Scores: scores(2, 2, 2, 2, 2, 2, 2, 2)},
			},
		},
		{
			Number: 6,
			Prompt: "What type of installation do you prefer?",
			Options: []Option{
				{Key: "A", Text: "DIY installation (easy setup)", Scores: scores(3, 3, 2, 2, 1, 1, 0, 0)},
				{Key: "B", Text: "Professional installation", Scores: scores(0, 0, 1, 2, 3, 3, 3, 3)},
				{Key: "C", Text: "Either works", Scores: scores(2, 2, 2, 2, 2, 2, 2, 2)},
			},
		},
	}
}

func defaultTiers() []Tier {
	return []Tier{
		{
			ID: TierStarter, Name: "SecureHome Starter Package", Price: 15999, Band: BandEntry,
			Description: "Entry-level security for small spaces",
			Features: []string{
				"1 Door/Window Sensor", "1 Motion Detector", "1 Smart Hub",
				"Mobile App Access", "Basic Alerts", "DIY Installation",
			},
		},
		{
			ID: TierBasic, Name: "SecureHome Basic Package", Price: 24999, Band: BandEntry,
			Description: "Essential security for small homes",
			Features: []string{
				"2 Door/Window Sensors", "1 Motion Detector", "1 Smart Hub",
				"Mobile App Access", "Basic Alerts", "Email Notifications",
			},
		},
		{
			ID: TierAdvanced, Name: "SecureHome Advanced Package", Price: 39999, Band: BandMid,
			Description: "Enhanced protection for growing families",
			Features: []string{
				"4 Door/Window Sensors", "2 Motion Detectors", "1 Security Camera", "1 Smart Hub",
				"Mobile App with Live View", "Cloud Storage (3 days)", "Smart Home Integration",
			},
		},
		{
			ID: TierStandard, Name: "SecureHome Standard Package", Price: 74999, Band: BandMid,
			Description: "Comprehensive protection for medium homes",
			Features: []string{
				"6 Door/Window Sensors", "3 Motion Detectors", "2 Security Cameras", "1 Smart Hub",
				"Mobile App with Live View", "Cloud Storage (7 days)", "Smart Home Integration",
				"Professional Installation Available",
			},
		},
		{
			ID: TierProfessional, Name: "SecureHome Professional Package", Price: 99999, Band: BandHigh,
			Description: "Professional-grade security solution",
			Features: []string{
				"8 Door/Window Sensors", "4 Motion Detectors", "3 HD Security Cameras", "1 Advanced Smart Hub",
				"Professional Monitoring (6 months)", "Mobile App with AI Features", "Cloud Storage (14 days)",
				"Full Smart Home Integration", "Smoke/CO Detectors",
			},
		},
		{
			ID: TierPremium, Name: "SecureHome Premium Package", Price: 166999, Band: BandHigh,
			Description: "Ultimate security solution for large properties",
			Features: []string{
				"12 Door/Window Sensors", "6 Motion Detectors", "4 HD Security Cameras", "1 Advanced Smart Hub",
				"Professional Monitoring (1 year)", "Mobile App with AI Features", "Cloud Storage (30 days)",
				"Full Smart Home Integration", "Smoke/CO Detectors", "Water Leak Sensors",
			},
		},
		{
			ID: TierEnterprise, Name: "SecureHome Enterprise Package", Price: 199999, Band: BandTop,
			Description: "Enterprise-level security for estates",
			Features: []string{
				"16 Door/Window Sensors", "8 Motion Detectors", "6 HD Security Cameras", "2 Advanced Smart Hubs",
				"24/7 Professional Monitoring (1 year)", "Mobile App with Advanced AI", "Cloud Storage (60 days)",
				"Full Smart Home Integration", "Smoke/CO Detectors", "Water Leak Sensors",
				"Environmental Sensors", "Professional Installation Included",
			},
		},
		{
			ID: TierUltimate, Name: "SecureHome Ultimate Package", Price: 249999, Band: BandTop,
			Description: "The most comprehensive security solution",
			Features: []string{
				"20 Door/Window Sensors", "10 Motion Detectors", "8 4K Security Cameras", "2 Advanced Smart Hubs",
				"24/7 Premium Professional Monitoring (2 years)", "Mobile App with AI & Analytics",
				"Cloud Storage (90 days)", "Full Smart Home Integration", "Smoke/CO Detectors",
				"Water Leak Sensors", "Environmental Sensors", "Panic Button",
				"Professional Installation & Setup", "Dedicated Support",
			},
		},
	}
}
