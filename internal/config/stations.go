package config

// Station is a preset radio stream selectable by key.
type Station struct {
	Name        string
	URL         string
	Thumbnail   string
	Description string
}

var Stations = map[string]Station{
	"relax": {
		Name:        "Relax FM",
		URL:         "https://pub0302.101.ru:8443/stream/air/aac/64/200",
		Thumbnail:   "https://relaxfm.ru/design/images/share.jpg",
		Description: "Calm music for winding down",
	},
	"retro": {
		Name:        "Retro FM",
		URL:         "https://retro.hostingradio.ru:8043/retro256.mp3",
		Thumbnail:   "https://retrofm.ru/retrosite/upload/cache/b1-logo-retro-fm-240x240-crop-ffffff.webp",
		Description: "Hits of the 70s, 80s and 90s",
	},
	"russian": {
		Name:        "Русское Радио",
		URL:         "https://rusradio.hostingradio.ru/rusradio96.aacp",
		Thumbnail:   "https://rusradio.ru/design/images/share.jpg",
		Description: "Popular Russian music",
	},
	"europa": {
		Name:        "Europa Plus",
		URL:         "https://ep256.hostingradio.ru:8052/europaplus256.mp3",
		Thumbnail:   "https://europaplus.ru/media/eplus_schema-color.jpg",
		Description: "International chart hits",
	},
	"rock": {
		Name:        "НАШЕ Радио",
		URL:         "https://nashe1.hostingradio.ru/nashe-256",
		Thumbnail:   "https://nashe.ru/publish/thumb/4a86b7ef7fb6e38cc15eb4e3a9ced5a3.jpg",
		Description: "Russian rock",
	},
	"record": {
		Name:        "Radio Record",
		URL:         "https://radiorecord.hostingradio.ru/rr_main96.aacp",
		Thumbnail:   "https://radiorecord.ru/upload/iblock/65e/65e9a73254599189a0f7a708bf5870c3.jpg",
		Description: "Electronic dance music",
	},
	"jazz": {
		Name:        "Радио Jazz",
		URL:         "https://radiojazzfm.hostingradio.ru/jazz-128.mp3",
		Thumbnail:   "https://radiojazzfm.ru/media/markizy/hg/2c/4968fcc6.jpg",
		Description: "Classic and modern jazz",
	},
	"lofi": {
		Name:        "Lo-Fi Music",
		URL:         "https://stream.zeno.fm/0r0xa792kwzuv",
		Thumbnail:   "https://i.imgur.com/ZDjc0ai.jpg",
		Description: "Lo-fi beats for work and study",
	},
}
