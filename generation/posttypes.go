package generation

// PostType is a category of post with guidance for writing it.
type PostType struct {
	ID            string `json:"id" yaml:"-"`
	Name          string `json:"name" yaml:"name"`
	Purpose       string `json:"purpose" yaml:"purpose"`
	StructureHint string `json:"structureHint" yaml:"structure_hint"`
	Tips          string `json:"tips" yaml:"tips"`
}

// builtinPostTypes is the catalog used when the knowledge directory does
// not override an entry through front matter.
var builtinPostTypes = []PostType{
	{
		ID:            "awareness",
		Name:          "認知",
		Purpose:       "存在や価値を軽く伝えて興味を引く。",
		StructureHint: "短い導入→気づき→一文で締める。",
		Tips:          "専門用語は避け、身近な例で共感を作る。",
	},
	{
		ID:            "authority",
		Name:          "権威",
		Purpose:       "実績や経験を示して信頼を高める。",
		StructureHint: "実績提示→学び→結論。",
		Tips:          "数字や固有名詞で具体性を出す。",
	},
	{
		ID:            "ideal",
		Name:          "理想",
		Purpose:       "目指す状態や未来像を描いて期待を作る。",
		StructureHint: "理想の描写→現在との差→一言。",
		Tips:          "未来の情景を具体的に描写する。",
	},
	{
		ID:            "engagement",
		Name:          "交流",
		Purpose:       "会話を生みエンゲージメントを高める。",
		StructureHint: "問いかけ→自分の一言→再度問い。",
		Tips:          "質問は1つに絞り、答えやすくする。",
	},
	{
		ID:            "fan",
		Name:          "ファン化",
		Purpose:       "人柄や価値観を伝え、親近感を作る。",
		StructureHint: "体験→感情→学び。",
		Tips:          "弱みや小さな気づきを入れる。",
	},
	{
		ID:            "education",
		Name:          "教育",
		Purpose:       "役立つ知識を簡潔に伝える。",
		StructureHint: "結論→理由→具体例。",
		Tips:          "1ツイートに1ポイントだけ。",
	},
	{
		ID:            "cta",
		Name:          "行動喚起",
		Purpose:       "次のアクションへ自然に促す。",
		StructureHint: "価値→行動→締め。",
		Tips:          "行動を1つに絞り、負担を軽くする。",
	},
	{
		ID:            "algorithm",
		Name:          "アルゴリズム",
		Purpose:       "Xの伸びやすさに関する示唆を届ける。",
		StructureHint: "観察→解釈→実践。",
		Tips:          "抽象論ではなく具体アクションで締める。",
	},
}

// merge fills empty fields of override from base.
func (pt PostType) merge(base PostType) PostType {
	if pt.Name == "" {
		pt.Name = base.Name
	}
	if pt.Purpose == "" {
		pt.Purpose = base.Purpose
	}
	if pt.StructureHint == "" {
		pt.StructureHint = base.StructureHint
	}
	if pt.Tips == "" {
		pt.Tips = base.Tips
	}
	return pt
}
