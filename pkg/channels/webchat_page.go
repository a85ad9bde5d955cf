package channels

import "github.com/vortexlabs/loginchat/pkg/chat"

var webChatLoginHTML = webChatLoginPage("")

var webChatLoginErrorHTML = webChatLoginPage("Invalid username or password")

func webChatLoginPage(errMsg string) string {
	errBlock := ""
	if errMsg != "" {
		errBlock = `<div class="login-error">` + errMsg + `</div>`
	}
	return `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>LoginChat - Sign in</title>
<style>
:root{--bg:#f4f6fb;--card:#fff;--line:#dde2ee;--accent:#3b6cf6;--accent-dark:#2d57cf;--text:#1e2433;--muted:#6b7386;--error:#d64545}
*{box-sizing:border-box;margin:0;padding:0}
html,body{height:100%}
body{font-family:system-ui,-apple-system,"Segoe UI",sans-serif;background:var(--bg);color:var(--text);display:flex;align-items:center;justify-content:center}
.login-card{width:100%;max-width:360px;padding:36px 28px;background:var(--card);border:1px solid var(--line);border-radius:14px;box-shadow:0 8px 30px rgba(30,36,51,.06)}
.login-card h1{font-size:20px;text-align:center;margin-bottom:6px}
.login-card .sub{font-size:13px;color:var(--muted);text-align:center;margin-bottom:24px}
.login-error{padding:10px 12px;margin-bottom:18px;border:1px solid var(--error);border-radius:8px;font-size:13px;color:var(--error)}
.field{margin-bottom:14px}
.field label{display:block;font-size:13px;color:var(--muted);margin-bottom:6px}
.field input{width:100%;padding:10px 12px;border:1px solid var(--line);border-radius:8px;font-size:14px;outline:none}
.field input:focus{border-color:var(--accent)}
.login-btn{width:100%;padding:11px;margin-top:6px;background:var(--accent);color:#fff;border:none;border-radius:8px;font-size:14px;font-weight:600;cursor:pointer}
.login-btn:hover{background:var(--accent-dark)}
</style>
</head>
<body>
<form class="login-card" method="POST" action="/login">
  <h1>LoginChat</h1>
  <p class="sub">Sign in to start chatting</p>
  ` + errBlock + `
  <div class="field"><label for="username">Username</label><input id="username" name="username" type="text" autocomplete="username" required autofocus></div>
  <div class="field"><label for="password">Password</label><input id="password" name="password" type="password" autocomplete="current-password" required></div>
  <button class="login-btn" type="submit">Sign in</button>
</form>
</body>
</html>`
}

var webChatHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>LoginChat</title>
<style>
:root{--bg:#f4f6fb;--panel:#fff;--line:#dde2ee;--accent:#3b6cf6;--text:#1e2433;--muted:#6b7386;--user:#3b6cf6;--bot:#eef1f8}
*{box-sizing:border-box;margin:0;padding:0}
html,body{height:100%}
body{font-family:system-ui,-apple-system,"Segoe UI",sans-serif;background:var(--bg);color:var(--text);display:flex;flex-direction:column}
header{display:flex;align-items:center;justify-content:space-between;padding:12px 20px;background:var(--panel);border-bottom:1px solid var(--line)}
header h1{font-size:16px}
header button,header a{font-size:13px;color:var(--muted);background:none;border:1px solid var(--line);border-radius:6px;padding:6px 10px;cursor:pointer;text-decoration:none;margin-left:6px}
#chat{flex:1;overflow-y:auto;padding:20px}
#welcome{max-width:520px;margin:60px auto;text-align:center;color:var(--muted)}
#welcome h2{color:var(--text);margin-bottom:8px;font-size:20px}
.message{display:flex;flex-direction:column;max-width:720px;margin:0 auto 14px}
.message.user{align-items:flex-end}
.message .text{padding:10px 14px;border-radius:12px;line-height:1.55;white-space:pre-wrap;word-break:break-word;max-width:85%}
.message.user .text{background:var(--user);color:#fff}
.message.bot .text{background:var(--bot)}
.message.bot .text pre{background:#1e2433;color:#e8ebf3;padding:10px;border-radius:8px;overflow-x:auto;white-space:pre}
.button-bar{display:flex;gap:6px;margin-top:4px}
.button-bar button{font-size:12px;border:1px solid var(--line);background:var(--panel);border-radius:6px;padding:2px 8px;cursor:pointer;color:var(--muted)}
.copy-success{font-size:12px;color:var(--accent);margin-top:2px}
#thinking{max-width:720px;margin:0 auto;color:var(--muted);font-size:13px;min-height:18px}
#waiting{max-width:720px;margin:0 auto;font-size:12px;color:var(--accent);min-height:16px}
footer{padding:12px 20px;background:var(--panel);border-top:1px solid var(--line)}
#form{display:flex;gap:8px;max-width:720px;margin:0 auto}
#input{flex:1;resize:none;padding:10px 12px;border:1px solid var(--line);border-radius:8px;font:inherit;font-size:14px;max-height:160px}
#form button,#form label{padding:0 14px;border-radius:8px;border:1px solid var(--line);background:var(--panel);cursor:pointer;display:flex;align-items:center;font-size:13px}
#form button[type=submit]{background:var(--accent);color:#fff;border-color:var(--accent)}
#file{display:none}
</style>
</head>
<body>
<header>
  <h1>LoginChat</h1>
  <div><button id="newChat" type="button">New chat</button><a href="/logout">Sign out</a></div>
</header>
<div id="chat">
  <div id="welcome"><h2>Hello!</h2><p>Ask me anything, or attach a file for me to look at.</p></div>
  <div id="messages"></div>
  <div id="thinking"></div>
</div>
<footer>
  <div id="waiting"></div>
  <form id="form">
    <label for="file" title="Attach a file">Attach</label><input id="file" type="file">
    <textarea id="input" rows="1" placeholder="Type a message..."></textarea>
    <button type="submit">Send</button>
  </form>
</footer>
<script>
const chatID=localStorage.getItem("loginchat_chat_id")||("web-"+Date.now());
localStorage.setItem("loginchat_chat_id",chatID);
const msgsEl=document.getElementById("messages"),chatEl=document.getElementById("chat"),
  welcomeEl=document.getElementById("welcome"),thinkingEl=document.getElementById("thinking"),
  waitingEl=document.getElementById("waiting"),inputEl=document.getElementById("input"),
  fileEl=document.getElementById("file");
let fileData=null,ws=null;
const bots={};

function esc(s){return s.replace(/&/g,"&amp;").replace(/</g,"&lt;").replace(/>/g,"&gt;").replace(/"/g,"&quot;").replace(/'/g,"&#039;")}
function scroll(){chatEl.scrollTop=chatEl.scrollHeight}

function addUser(text){
  welcomeEl.style.display="none";
  const m=document.createElement("div");m.className="message user";
  m.innerHTML='<div class="text">'+esc(text)+'</div>';
  msgsEl.appendChild(m);scroll();
}

function addBot(id,html){
  welcomeEl.style.display="none";
  const m=document.createElement("div");m.className="message bot";m.id=id;
  const t=document.createElement("div");t.className="text";if(html)t.innerHTML=html;
  const bar=document.createElement("div");bar.className="button-bar";
  const pause=document.createElement("button");pause.textContent="Pause";
  pause.onclick=()=>send({type:"pause",id:id});
  const copy=document.createElement("button");copy.textContent="Copy";
  copy.onclick=()=>navigator.clipboard.writeText(t.innerText).then(()=>{
    const ok=document.createElement("div");ok.className="copy-success";ok.textContent="Copied to clipboard";
    m.appendChild(ok);setTimeout(()=>ok.remove(),2000);
  });
  bar.appendChild(pause);bar.appendChild(copy);
  m.appendChild(t);m.appendChild(bar);msgsEl.appendChild(m);scroll();
  bots[id]={text:t,pause:pause};
  return bots[id];
}

function connect(){
  const proto=location.protocol==="https:"?"wss://":"ws://";
  ws=new WebSocket(proto+location.host+"/chat/stream?chat_id="+encodeURIComponent(chatID));
  ws.onmessage=ev=>{
    const f=JSON.parse(ev.data);
    switch(f.type){
      case "thinking":thinkingEl.textContent="` + chat.ThinkingText + `";break;
      case "start":thinkingEl.textContent="";addBot(f.id,"");break;
      case "char":if(bots[f.id]){bots[f.id].text.textContent+=f.text;scroll()}break;
      case "done":if(bots[f.id])bots[f.id].text.innerHTML=f.html;break;
      case "paused":if(bots[f.id])bots[f.id].pause.textContent=f.paused?"Resume":"Pause";break;
      case "cleared":msgsEl.innerHTML="";welcomeEl.style.display="block";break;
      case "error":thinkingEl.textContent="";addBot("err-"+Date.now(),esc(f.text));break;
    }
  };
  ws.onclose=()=>setTimeout(connect,2000);
}

function send(frame){if(ws&&ws.readyState===WebSocket.OPEN)ws.send(JSON.stringify(frame))}

async function loadHistory(){
  const r=await fetch("/chat/poll?chat_id="+encodeURIComponent(chatID));
  if(!r.ok)return;
  for(const m of await r.json()){
    if(m.role==="user")addUser(m.content);else addBot(m.id,m.html);
  }
}

fileEl.onchange=()=>{
  const f=fileEl.files[0];if(!f)return;
  const reader=new FileReader();
  reader.onload=e=>{fileData={name:f.name,content:e.target.result.split(",")[1]};waitingEl.textContent="Uploaded: "+f.name};
  reader.readAsDataURL(f);
};

document.getElementById("form").onsubmit=e=>{
  e.preventDefault();
  const text=inputEl.value;
  if(!text&&!fileData)return;
  addUser(text+(fileData?"\nAttached file: "+fileData.name:""));
  send({type:"send",message:text,file:fileData});
  inputEl.value="";fileData=null;fileEl.value="";waitingEl.textContent="";
};
inputEl.addEventListener("keydown",e=>{if(e.key==="Enter"&&!e.shiftKey){e.preventDefault();document.getElementById("form").requestSubmit()}});
document.getElementById("newChat").onclick=()=>send({type:"new"});

loadHistory().then(connect);
</script>
</body>
</html>`
