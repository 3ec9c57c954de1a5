package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// Instruction preamble sent before every extraction request. The gBizINFO
// listing keyed by corporate number is the primary source; the corporate
// number itself is the invariant match key, names and addresses drift.
const promptPreamble = `
各会社の調査においては、まず必ず提示された企業法人番号を利用してGoogleで検索してください。
https://info.gbiz.go.jp/hojin/ichiran?hojinBango=
の末尾に会社法人番号を追加すると、会社に関する情報が表示されます。
ここに基本的な情報があるので、これを基本的に参考にしてください。
次の URL を検索します。提示URLに表示されない情報は、再びインターネット検索で補完されます。
調査及び対照の最優先基準は、**会社法人番号（法人番号）**とします。企業法人番号は決して変更されない。会社名・住所は変更される可能性がありますので、これらを根拠に推測・確定してください。
出力形式はJSONのみであり、説明文やコメントは必要ありません。必ず指定されたJSONスキーマに従って納品してください（ファイル以外の形式は不可）。
年齢計算の基準日は2025年9月時点とし、「50代」のような数表示は避け、可能な限り**具体的な年齢（例：52歳）**で記載してください。
調査は正確さを最優先に、慎重に実施してください。
>>>>>>
`

// promptSchema is the JSON shape the model must fill. Keys are the contract;
// the repeating groups use indexed flat keys the normalizer probes later.
const promptSchema = `{
  "基本法人情報（識別・概要）": {
    "企業法人番号": "",
    "会社名": "",
    "会社名かな": "",
    "英文企業名": "",
    "代表者名": "",
    "代表者かな": "",
    "代表者年齢": "",
    "代表者生年月日": "",
    "代表者出身大学": "",
    "郵便番号": "",
    "住所": "",
    "電話番号": "",
    "登記住所": "",
    "FAX番号": "",
    "URL": "",
    "創業": "",
    "設立": "",
    "資本金": "",
    "出資金": "",
    "会員数": "",
    "組合員数": "",
    "上場市場": "",
    "証券コード": "",
    "決算期": ""
  },
  "経営・財務情報": {
    "売上高": "",
    "純利益": "",
    "預金量": "",
    "従業員数": "",
    "平均年齢": "",
    "平均年収": "",
    "役員数": "",
    "株主数": "",
    "取引銀行": ""
  },
  "事業・業務内容": {
    "業種": "",
    "事業内容": "",
    "主要事業": "",
    "事業エリア": "",
    "系列": "",
    "販売先": "",
    "仕入先": ""
  },
  "役員名簿": {
    "役職名１": "", "役員名１": "", "ふりがな１": "",
    "役職名２": "", "役員名２": "", "ふりがな２": "",
    "役職名３": "", "役員名３": "", "ふりがな３": "",
    "役職名４": "", "役員名４": "", "ふりがな４": "",
    "役職名５": "", "役員名５": "", "ふりがな５": ""
  },
  "拠点・展開規模": {
    "事業所数": "",
    "店舗数": ""
  },
  "拠点・事業所一覧": {
    "事業所名１": "", "郵便番号１": "", "住所１": "", "電話番号１": "", "扱い品目・業務内容１": "",
    "事業所名２": "", "郵便番号２": "", "住所２": "", "電話番号２": "", "扱い品目・業務内容２": "",
    "事業所名３": "", "郵便番号３": "", "住所３": "", "電話番号３": "", "扱い品目・業務内容３": ""
  },
  "URL": {
    "会社概要ページURL": "",
    "拠点・事業所ページURL": "",
    "組織図ページURL": "",
    "関係会社ページURL": ""
  }
}`

const rawPayloadLogLimit = 500

// geminiExtractor asks Gemini for one structured company profile per record.
// One record per call: batched multi-company prompts produced markedly more
// malformed JSON, so throughput is traded for parse reliability.
type geminiExtractor struct {
	client *genai.Client
	model  string
	logger *logrus.Logger
}

func NewGeminiExtractor(client *genai.Client, model string, logger *logrus.Logger) Extractor {
	return &geminiExtractor{client: client, model: model, logger: logger}
}

func (e *geminiExtractor) ExtractCompany(ctx context.Context, rec SourceRecord) (*CompanyDocument, error) {
	prompt := buildExtractionPrompt(rec)

	resp, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, err
	}

	raw := stripCodeFence(resp.Text())
	doc, parseErr := ParseCompanyDocument([]byte(raw))
	if parseErr != nil {
		// Malformed model output is not a transport failure: the record is
		// skipped, the run continues. Keep enough payload to diagnose offline.
		e.logger.WithFields(logrus.Fields{
			"module":           "research",
			"funcName":         "ExtractCompany",
			"corporate_number": rec.CorporateNumber,
			"raw":              truncateForLog(raw, rawPayloadLogLimit),
		}).Warn("model output did not parse as a company document: " + parseErr.Error())
		return nil, nil
	}

	// The model's own rendering of the corporate number is never trusted:
	// it is the reconciliation key and must stay the input row's value.
	doc.SetCorporateNumber(rec.CorporateNumber)
	return doc, nil
}

func buildExtractionPrompt(rec SourceRecord) string {
	var b strings.Builder
	b.WriteString(promptPreamble)
	fmt.Fprintf(&b, "\n企業法人番号: %s\n会社名: %s\n所在地: %s\n補足: %s\n", rec.CorporateNumber, rec.Name, rec.Address, rec.Note)
	b.WriteString("\n以下のJSON形式で返してください:\n")
	b.WriteString(promptSchema)
	return b.String()
}

// stripCodeFence removes an optional ```json ... ``` wrapper from model output.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag line (e.g. "json").
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncateForLog(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
